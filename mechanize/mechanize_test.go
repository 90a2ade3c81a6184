package mechanize

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/gnss-vio/gvins-core/estimator"
)

func TestMechanizerFirstSampleOnlySeeds(t *testing.T) {
	m := New(func() estimator.SolverFlag { return estimator.Initial }, nil)
	m.Step(1.0, r3.Vector{Z: 10}, r3.Vector{})
	test.That(t, m.p, test.ShouldResemble, r3.Vector{})
	test.That(t, m.v, test.ShouldResemble, r3.Vector{})
}

func TestMechanizerConstantAccelerationNoGravityNoBias(t *testing.T) {
	// P5: with zero bias, zero rotation, and zero gravity, mid-point
	// integration of a constant acceleration must match the closed form
	// to high precision.
	m := New(func() estimator.SolverFlag { return estimator.Initial }, nil)
	a := r3.Vector{X: 2, Y: 0, Z: 0}

	m.Step(0.0, a, r3.Vector{})
	const dt = 0.01
	steps := 100
	tt := 0.0
	for i := 0; i < steps; i++ {
		tt += dt
		m.Step(tt, a, r3.Vector{})
	}

	wantV := a.Mul(tt)
	wantP := a.Mul(0.5 * tt * tt)

	test.That(t, m.v.X, test.ShouldAlmostEqual, wantV.X, 1e-9)
	test.That(t, m.p.X, test.ShouldAlmostEqual, wantP.X, 1e-9)
}

func TestMechanizerStraddleInterpolationIntegratesInOrder(t *testing.T) {
	// Scenario from spec §8 "Straddle interpolation": three samples with
	// a stepped acceleration; checks the mechanizer itself (not the
	// dispatcher's interpolation, which is a C6 concern): after stepping
	// through the samples in order, t_last is the newest sample's time (I6).
	m := New(func() estimator.SolverFlag { return estimator.Initial }, nil)
	m.Step(0.00, r3.Vector{Z: 10}, r3.Vector{})
	m.Step(0.01, r3.Vector{Z: 10}, r3.Vector{})
	m.Step(0.02, r3.Vector{Z: 20}, r3.Vector{})
	test.That(t, m.tLast, test.ShouldAlmostEqual, 0.02, 1e-12)
}

func TestMechanizerResetClearsState(t *testing.T) {
	m := New(func() estimator.SolverFlag { return estimator.Initial }, nil)
	m.Step(0, r3.Vector{Z: 1}, r3.Vector{})
	m.Step(1, r3.Vector{Z: 1}, r3.Vector{})
	test.That(t, m.initialized, test.ShouldBeTrue)

	m.Reset()
	test.That(t, m.initialized, test.ShouldBeFalse)
	test.That(t, m.p, test.ShouldResemble, r3.Vector{})
}
