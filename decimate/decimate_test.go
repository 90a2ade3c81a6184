package decimate

import (
	"testing"

	"go.viam.com/test"
)

func TestDecimatorParityLock(t *testing.T) {
	d := New(true)
	d.NoteGNSSTime(0.000)

	// Seed "prior feature time" at 0.000 the way the first admitted frame
	// would: emit it (undecided still returns false, so seed directly).
	test.That(t, d.Admit(0.000, true), test.ShouldBeFalse) // still undecided, no prior feature yet

	// Incoming feature 0.050: |0.050-0.000| > |0.000-0.000| -> skip_parity = counter(2) mod 2 = 0
	test.That(t, d.Admit(0.050, true), test.ShouldBeFalse)

	d.NoteGNSSTime(0.100)
	test.That(t, d.Admit(0.100, true), test.ShouldBeTrue)
	test.That(t, d.Admit(0.150, true), test.ShouldBeFalse)
	test.That(t, d.Admit(0.200, true), test.ShouldBeTrue)
}

func TestDecimatorDisabledKeepsAll(t *testing.T) {
	d := New(false)
	for _, tt := range []float64{0, 0.05, 0.1, 0.15, 0.2} {
		test.That(t, d.Admit(tt, false), test.ShouldBeTrue)
	}
}

func TestDecimatorStaysUndecidedWithoutGNSS(t *testing.T) {
	d := New(true)
	// No GNSS time has arrived yet: parity lock cannot form (open question 1).
	test.That(t, d.Admit(0.0, true), test.ShouldBeFalse)
	test.That(t, d.Admit(0.05, true), test.ShouldBeFalse)
	test.That(t, d.Admit(0.10, true), test.ShouldBeFalse)
}
