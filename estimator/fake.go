package estimator

import (
	"sync"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/gnss-vio/gvins-core/measurement"
)

// Fake is an injectable Estimator for tests: the Process* and Input* methods
// can be overridden with a Func field, falling back to simple in-memory
// bookkeeping otherwise (InputGNSSTimeDiff records into GNSSDiffs either
// way); the remaining methods return the exported fields. This mirrors the
// teacher's testutils/inject fakes.
type Fake struct {
	mu sync.Mutex

	ProcessIMUFunc          func(dt float64, accel, gyro r3.Vector)
	ProcessGNSSFunc         func(epoch measurement.GNSSEpoch)
	ProcessImageFunc        func(image map[int][]ImageFeature, header Header)
	InputEphemerisFunc      func(ephem measurement.Ephemeris)
	InputIonoParamsFunc     func(params measurement.IonoParams)
	InputGNSSTimeDiffFunc   func(delta float64)

	Flag         SolverFlag
	G            r3.Vector
	Window       WindowState
	Optimization OptimizationResult
	TD           float64

	IMUCalls    []struct{ Dt float64; Accel, Gyro r3.Vector }
	GNSSCalls   []measurement.GNSSEpoch
	ImageCalls  []Header
	GNSSDiffs   []float64
}

// NewFake returns a Fake pre-seeded with a downward gravity vector.
func NewFake() *Fake {
	return &Fake{G: r3.Vector{X: 0, Y: 0, Z: 9.81}, Window: WindowState{Q: quat.Number{Real: 1}}}
}

func (f *Fake) ProcessIMU(dt float64, accel, gyro r3.Vector) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ProcessIMUFunc != nil {
		f.ProcessIMUFunc(dt, accel, gyro)
		return
	}
	f.IMUCalls = append(f.IMUCalls, struct{ Dt float64; Accel, Gyro r3.Vector }{dt, accel, gyro})
}

func (f *Fake) ProcessGNSS(epoch measurement.GNSSEpoch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ProcessGNSSFunc != nil {
		f.ProcessGNSSFunc(epoch)
		return
	}
	f.GNSSCalls = append(f.GNSSCalls, epoch)
}

func (f *Fake) ProcessImage(image map[int][]ImageFeature, header Header) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ProcessImageFunc != nil {
		f.ProcessImageFunc(image, header)
		return
	}
	f.ImageCalls = append(f.ImageCalls, header)
}

func (f *Fake) InputEphemeris(ephem measurement.Ephemeris) {
	if f.InputEphemerisFunc != nil {
		f.InputEphemerisFunc(ephem)
	}
}

func (f *Fake) InputIonoParams(params measurement.IonoParams) {
	if f.InputIonoParamsFunc != nil {
		f.InputIonoParamsFunc(params)
	}
}

func (f *Fake) InputGNSSTimeDiff(delta float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GNSSDiffs = append(f.GNSSDiffs, delta)
	if f.InputGNSSTimeDiffFunc != nil {
		f.InputGNSSTimeDiffFunc(delta)
	}
}

func (f *Fake) ClearState() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Flag = Initial
	f.Window = WindowState{Q: quat.Number{Real: 1}}
}

func (f *Fake) SetParameter() {}

func (f *Fake) SolverFlag() SolverFlag {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Flag
}

func (f *Fake) Gravity() r3.Vector { return f.G }

func (f *Fake) LatestWindowState() WindowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Window
}

func (f *Fake) LatestOptimization() OptimizationResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Optimization
}

func (f *Fake) TimeOffset() float64 { return f.TD }
