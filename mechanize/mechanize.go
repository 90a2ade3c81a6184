// Package mechanize implements the IMU mechanizer (spec §4.4, component
// C4): mid-point integration of orientation, position, and velocity between
// estimator optimizations, plus the odometry publish. The dispatcher steps
// the mechanizer with each bundle's IMU samples and calls PublishIfReady
// once per bundle; nothing is stepped or published from the IMU callback.
package mechanize

import (
	"sync"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/gnss-vio/gvins-core/estimator"
)

// Odometry is one pose sample published through PublishIfReady.
type Odometry struct {
	T float64
	P r3.Vector
	Q quat.Number
	V r3.Vector
}

// Publisher receives odometry samples. It is called on the dispatcher's
// worker goroutine, once per dispatched bundle.
type Publisher func(Odometry)

// Mechanizer owns the mechanization state described in spec §3 and
// advances it one IMU sample at a time.
type Mechanizer struct {
	mu sync.Mutex

	tLast       float64
	initialized bool

	p, v             r3.Vector
	q                quat.Number
	ba, bg           r3.Vector
	aPrev, omegaPrev r3.Vector

	gravity    r3.Vector
	solverFlag func() estimator.SolverFlag
	publish    Publisher
}

// New returns a Mechanizer. solverFlag is polled by PublishIfReady to decide
// whether the publish fires (only in the nonlinear phase, spec
// §4.4). gravity is read once per Reseed from the estimator.
func New(solverFlag func() estimator.SolverFlag, publish Publisher) *Mechanizer {
	return &Mechanizer{q: quat.Number{Real: 1}, solverFlag: solverFlag, publish: publish}
}

// Step integrates one IMU sample. The first call after construction or a
// Reset only seeds t_last and the previous accel/gyro; it performs no
// integration, matching the source's uninitialized-sample behavior.
func (m *Mechanizer) Step(t float64, accel, gyro r3.Vector) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.step(t, accel, gyro)
}

func (m *Mechanizer) step(t float64, accel, gyro r3.Vector) {
	if !m.initialized {
		m.tLast = t
		m.aPrev = accel
		m.omegaPrev = gyro
		m.initialized = true
		return
	}

	dt := t - m.tLast
	m.tLast = t

	aCorrPrev := rotate(m.q, sub(m.aPrev, m.ba)).Sub(m.gravity)
	omegaMid := sub(scaleVec(0.5, add(m.omegaPrev, gyro)), m.bg)
	m.q = quat.Mul(m.q, deltaQ(scaleVec(dt, omegaMid)))

	aCorrCur := rotate(m.q, sub(accel, m.ba)).Sub(m.gravity)
	aMid := scaleVec(0.5, add(aCorrPrev, aCorrCur))

	m.p = m.p.Add(m.v.Mul(dt)).Add(aMid.Mul(0.5 * dt * dt))
	m.v = m.v.Add(aMid.Mul(dt))

	m.aPrev = accel
	m.omegaPrev = gyro
}

// Pose returns the mechanizer's current state regardless of whether the
// estimator has reached the nonlinear phase, for callers (the flight
// recorder) that want the latest pose even before PublishIfReady would
// fire.
func (m *Mechanizer) Pose() Odometry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Odometry{T: m.tLast, P: m.p, Q: m.q, V: m.v}
}

// PublishIfReady emits one odometry sample through Publisher if the
// estimator has reached the nonlinear phase (spec §4.4).
func (m *Mechanizer) PublishIfReady(header float64) {
	if m.publish == nil || m.solverFlag == nil || m.solverFlag() != estimator.NonLinear {
		return
	}
	m.mu.Lock()
	odom := Odometry{T: header, P: m.p, Q: m.q, V: m.v}
	m.mu.Unlock()
	m.publish(odom)
}

// Sample is one buffered IMU reading, used by Reseed to replay samples
// newer than the estimator's window end.
type Sample struct {
	T           float64
	Accel, Gyro r3.Vector
}

// Reseed resets the mechanization state from the estimator's latest window
// state and then replays every buffered IMU sample newer than the window's
// end time, per spec §4.4. samples must already be sorted by time.
func (m *Mechanizer) Reseed(window estimator.WindowState, gravity r3.Vector, samples []Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.p = window.P
	m.q = window.Q
	m.v = window.V
	m.ba = window.BiasAccel
	m.bg = window.BiasGyro
	m.aPrev = window.PrevAccel
	m.omegaPrev = window.PrevGyro
	m.tLast = window.T
	m.initialized = true
	m.gravity = gravity

	for _, s := range samples {
		if s.T <= window.T {
			continue
		}
		m.step(s.T, s.Accel, s.Gyro)
	}
}

// Reset clears the mechanizer back to uninitialized, used on a restart
// (spec §4.7: C4's initialized <- false).
func (m *Mechanizer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tLast = 0
	m.initialized = false
	m.p = r3.Vector{}
	m.v = r3.Vector{}
	m.q = quat.Number{Real: 1}
	m.ba = r3.Vector{}
	m.bg = r3.Vector{}
	m.aPrev = r3.Vector{}
	m.omegaPrev = r3.Vector{}
}

// deltaQ builds the small-angle quaternion increment δQ(θ) ≈ [1, θ/2],
// normalized (spec §4.4 and §9's design note preferring the exact form only
// when ‖θ‖ may exceed ~1e-2 rad per step; this mechanizer runs at IMU rate
// where the approximation holds).
func deltaQ(theta r3.Vector) quat.Number {
	dq := quat.Number{Real: 1, Imag: theta.X / 2, Jmag: theta.Y / 2, Kmag: theta.Z / 2}
	n := quat.Abs(dq)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, dq)
}

// rotate applies unit quaternion q to vector v: q * v * conj(q).
func rotate(q quat.Number, v r3.Vector) r3.Vector {
	vq := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, vq), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

func sub(a, b r3.Vector) r3.Vector              { return a.Sub(b) }
func add(a, b r3.Vector) r3.Vector              { return a.Add(b) }
func scaleVec(s float64, v r3.Vector) r3.Vector { return v.Mul(s) }
