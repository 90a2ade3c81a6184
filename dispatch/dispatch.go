// Package dispatch implements the main loop and restart controller (spec
// §4.6-4.7, components C6 and C7): the single consumer of the ingest
// buffers. A real transport would call the estimator's ephemeris/iono
// passthrough inputs (InputEphemeris, InputIonoParams) directly off the
// reference cmd/gvinsnode already holds, the clock calibrator publishes Δ
// through InputGNSSTimeDiff, and the synchronizer reads TimeOffset; this
// package owns the remaining calls into the estimator.
package dispatch

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/golang/geo/r3"

	"github.com/gnss-vio/gvins-core/clock"
	"github.com/gnss-vio/gvins-core/decimate"
	"github.com/gnss-vio/gvins-core/estimator"
	"github.com/gnss-vio/gvins-core/ingest"
	"github.com/gnss-vio/gvins-core/logging"
	"github.com/gnss-vio/gvins-core/measurement"
	"github.com/gnss-vio/gvins-core/mechanize"
	"github.com/gnss-vio/gvins-core/recorder"
)

// Publications groups the side effects C6 step 6 fans out to. Odometry is
// the high-rate publish riding on the mechanizer (§4.4); the other five
// fire once per optimization, built from the estimator's OptimizationResult
// (§6's "per-optimization odometry, key-pose set, camera pose, landmark
// point cloud, transform frames, keyframe marker"). Transport and
// serialization of these are out of scope (spec §1); this package calls the
// callbacks with already-built values.
type Publications struct {
	Odometry   func(mechanize.Odometry)
	KeyPoses   func([]estimator.KeyPose)
	CameraPose func(estimator.Pose)
	PointCloud func([]estimator.Landmark)
	TF         func([]estimator.Transform)
	Keyframe   func(estimator.Keyframe)
}

// Dispatcher drives the synchronizer, the estimator, and the mechanizer. It
// is built once per node lifetime; Restart (C7) re-initializes it in place
// without tearing down the worker goroutine.
type Dispatcher struct {
	logger logging.Logger

	buf          *ingest.Buffers
	synchronizer *ingest.Synchronizer
	calibrator   *clock.Calibrator
	est          estimator.Estimator
	mech         *mechanize.Mechanizer
	decim        *decimate.Decimator

	pubs Publications
	rec  *recorder.Recorder

	// m_estimator in spec §5: guards calls into the estimator and t_current.
	estMu      sync.Mutex
	tCurrent   float64
	haveT      bool
	pendingIMU []mechanize.Sample // buffered for C4 reseed-and-replay
}

// SetRecorder attaches a flight recorder: every dispatched bundle from this
// point on is persisted as a Row, raw measurements included, so the session
// can be replayed later. Passing nil detaches it.
func (d *Dispatcher) SetRecorder(rec *recorder.Recorder) {
	d.rec = rec
}

// New builds a Dispatcher. gnssEnabled selects whether the decimator and
// synchronizer engage GNSS pairing.
func New(
	logger logging.Logger,
	buf *ingest.Buffers,
	synchronizer *ingest.Synchronizer,
	calibrator *clock.Calibrator,
	est estimator.Estimator,
	gnssEnabled bool,
	pubs Publications,
) *Dispatcher {
	d := &Dispatcher{
		logger:       logger,
		buf:          buf,
		synchronizer: synchronizer,
		calibrator:   calibrator,
		est:          est,
		decim:        decimate.New(gnssEnabled),
		pubs:         pubs,
	}
	d.mech = mechanize.New(est.SolverFlag, func(o mechanize.Odometry) {
		if pubs.Odometry != nil {
			pubs.Odometry(o)
		}
	})
	return d
}

// Run is the dedicated worker loop (spec §4.6): it is the only consumer of
// the buffers and blocks in Synchronizer.Next between bundles.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		bundle, ok := d.synchronizer.Next()
		if !ok {
			return
		}
		start := time.Now()
		d.dispatch(bundle)
		d.logger.Debugw("dispatchLatency", "seconds", time.Since(start).Seconds(), "waitCount", d.synchronizer.WaitCount())
	}
}

// Admit runs a feature frame through the decimator (C3) before it reaches
// the buffers; callers (sensor-callback code) should call this instead of
// Buffers.PushFeature directly whenever decimation is configured on.
func (d *Dispatcher) Admit(f measurement.FeatureFrame) bool {
	delta, valid := d.calibrator.Offset()
	t := f.TLocal
	if valid {
		t += delta
	}
	if !d.decim.Admit(t, valid) {
		return false
	}
	d.buf.PushFeature(f)
	return true
}

// NoteGNSSEpoch feeds the decimator the GNSS time it should lock its parity
// against, independent of whether that epoch ends up paired with a frame.
func (d *Dispatcher) NoteGNSSEpoch(e measurement.GNSSEpoch) {
	d.decim.NoteGNSSTime(e.TGNSS)
}

func (d *Dispatcher) dispatch(bundle *ingest.Bundle) {
	td := d.est.TimeOffset()
	cutoff := bundle.Image.TLocal + td

	d.estMu.Lock()
	if !d.haveT {
		d.tCurrent = cutoff
		if len(bundle.IMU) > 0 {
			d.tCurrent = bundle.IMU[0].TLocal
		}
		d.haveT = true
	}

	n := len(bundle.IMU)
	for i, s := range bundle.IMU {
		isStraddle := i == n-1 && s.TLocal > cutoff
		if isStraddle {
			dt1 := cutoff - d.tCurrent
			dt2 := s.TLocal - cutoff
			if dt1+dt2 <= 0 {
				panic(fmt.Sprintf("dispatch: straddle interval dt1+dt2 <= 0 (dt1=%f, dt2=%f)", dt1, dt2))
			}
			w1 := dt2 / (dt1 + dt2)
			w2 := dt1 / (dt1 + dt2)
			// The previous sample is needed to interpolate; if this is the
			// very first IMU sample in the bundle there is nothing to blend
			// against, so fall back to using it directly.
			accel, gyro := s.Accel, s.Gyro
			if i > 0 {
				prev := bundle.IMU[i-1]
				accel = prev.Accel.Mul(w1).Add(s.Accel.Mul(w2))
				gyro = prev.Gyro.Mul(w1).Add(s.Gyro.Mul(w2))
			}
			d.integrate(dt1, accel, gyro, cutoff)
			continue
		}
		dt := s.TLocal - d.tCurrent
		if dt < 0 {
			panic(fmt.Sprintf("dispatch: imu sample dt < 0 (dt=%f, t=%f, tCurrent=%f)", dt, s.TLocal, d.tCurrent))
		}
		d.integrate(dt, s.Accel, s.Gyro, s.TLocal)
	}
	if bundle.GNSS != nil {
		d.est.ProcessGNSS(*bundle.GNSS)
	}

	imageMap := buildFeatureMap(bundle.Image)
	header := estimator.Header{TLocal: bundle.Image.TLocal}
	d.est.ProcessImage(imageMap, header)

	d.publishOptimization()

	d.mech.PublishIfReady(bundle.Image.TLocal)

	if d.est.SolverFlag() == estimator.NonLinear {
		d.reseed()
	}
	d.estMu.Unlock()

	if d.rec != nil {
		d.record(bundle)
	}
}

// record persists the bundle dispatch just completed, raw measurements
// included, so a later replay can drive the same session.
func (d *Dispatcher) record(bundle *ingest.Bundle) {
	pose := d.mech.Pose()
	row := recorder.Row{
		TImage:     bundle.Image.TLocal,
		GNSSPaired: bundle.GNSS != nil,
		IMUCount:   len(bundle.IMU),
		PoseX:      pose.P.X,
		PoseY:      pose.P.Y,
		PoseZ:      pose.P.Z,
		IMU:        bundle.IMU,
		Feature:    bundle.Image,
		GNSS:       bundle.GNSS,
	}
	if err := d.rec.Record(row); err != nil {
		d.logger.Warnw("failed to record bundle", "error", err)
	}
}

// publishOptimization fans out C6 step 6's per-optimization publications
// (spec §4.6 step 6; §6): key-pose set, camera pose, landmark point cloud,
// transform frames, and keyframe marker. Unlike the reseed in step 7, these
// fire unconditionally, mirroring the original's unconditional pubKeyPoses/
// pubCameraPose/pubPointCloud/pubTF/pubKeyframe calls after every
// processImage.
func (d *Dispatcher) publishOptimization() {
	opt := d.est.LatestOptimization()
	if d.pubs.KeyPoses != nil {
		d.pubs.KeyPoses(opt.KeyPoses)
	}
	if d.pubs.CameraPose != nil {
		d.pubs.CameraPose(opt.CameraPose)
	}
	if d.pubs.PointCloud != nil {
		d.pubs.PointCloud(opt.Landmarks)
	}
	if d.pubs.TF != nil {
		d.pubs.TF(opt.Transforms)
	}
	if d.pubs.Keyframe != nil {
		d.pubs.Keyframe(opt.Keyframe)
	}
}

// integrate calls ProcessIMU under m_estimator and advances t_current,
// mirroring C6 step 1/2; it also feeds the mechanizer and records the
// sample so a later reseed can replay it.
func (d *Dispatcher) integrate(dt float64, accel, gyro r3.Vector, newT float64) {
	d.est.ProcessIMU(dt, accel, gyro)
	d.mech.Step(newT, accel, gyro)
	d.tCurrent = newT
	d.pendingIMU = append(d.pendingIMU, mechanize.Sample{T: newT, Accel: accel, Gyro: gyro})
}

// reseed implements C4's post-optimization reseed (spec §4.4): pull the
// estimator's latest window, reset the mechanizer from it, and replay
// whichever buffered samples are newer than the window's end.
func (d *Dispatcher) reseed() {
	window := d.est.LatestWindowState()
	gravity := d.est.Gravity()

	replay := d.pendingIMU[:0:0]
	for _, s := range d.pendingIMU {
		if s.T > window.T {
			replay = append(replay, s)
		}
	}
	d.mech.Reseed(window, gravity, replay)
	d.pendingIMU = replay
}

// buildFeatureMap groups a frame's points by feature id, asserting the
// normalized-plane invariant z==1 (spec §3).
func buildFeatureMap(f measurement.FeatureFrame) map[int][]estimator.ImageFeature {
	out := make(map[int][]estimator.ImageFeature, len(f.Points))
	for _, p := range f.Points {
		if math.Abs(p.Z-1) > 1e-6 {
			panic(fmt.Sprintf("dispatch: feature point id=%d has z=%f, want 1", p.ID, p.Z))
		}
		out[p.ID] = append(out[p.ID], estimator.ImageFeature{
			Cam: p.Cam,
			X:   p.X, Y: p.Y, Z: p.Z,
			U: p.U, V: p.V,
			VX: p.VX, VY: p.VY,
		})
	}
	return out
}

// Restart implements C7: flush the ingest buffers (GNSS preserved), clear
// and re-initialize the estimator, and reset C6/C4's running time state.
// Clock-calibration state (m_time) is explicitly left untouched.
func (d *Dispatcher) Restart() {
	d.buf.Flush()

	d.estMu.Lock()
	d.est.ClearState()
	d.est.SetParameter()
	d.haveT = false
	d.tCurrent = 0
	d.pendingIMU = nil
	d.estMu.Unlock()

	d.mech.Reset()
}
