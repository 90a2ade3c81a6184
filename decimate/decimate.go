// Package decimate implements the feature-rate decimator (spec §4.3,
// component C3): it keeps roughly one image per GNSS epoch by locking onto
// whichever parity of the incoming feature stream lands closer to the
// GNSS time grid.
package decimate

// Decimator holds the skip-parity state machine.
type Decimator struct {
	gnssEnabled bool
	skipParity  int // -1 undecided, 0 or 1 once locked
	counter     uint64

	havePrevFeature bool
	prevFeatureT    float64

	haveGNSS  bool
	lastGNSST float64
}

// New returns a Decimator. With gnssEnabled false, decimation never engages
// and every frame is kept (spec §4.3: skip_parity=0, "keep all"); with it
// true, skip_parity starts undecided and the parity lock forms on the first
// feature frame that has both a prior feature and a prior GNSS time.
func New(gnssEnabled bool) *Decimator {
	d := &Decimator{gnssEnabled: gnssEnabled, skipParity: 0}
	if gnssEnabled {
		d.skipParity = -1
	}
	return d
}

// NoteGNSSTime records the time of the most recently aligned GNSS epoch,
// used as the reference the parity lock measures distance against.
func (d *Decimator) NoteGNSSTime(tGNSS float64) {
	d.lastGNSST = tGNSS
	d.haveGNSS = true
}

// Admit reports whether the feature frame arriving at GNSS-aligned time t
// (t_feat + Δ) should be kept. deltaValid indicates whether C1's offset is
// currently usable; t is meaningless otherwise and the lock cannot advance.
func (d *Decimator) Admit(t float64, deltaValid bool) bool {
	if !d.gnssEnabled {
		return true
	}
	d.counter++

	if d.skipParity < 0 && deltaValid && d.haveGNSS && d.havePrevFeature {
		if absDiff(t, d.lastGNSST) > absDiff(d.prevFeatureT, d.lastGNSST) {
			d.skipParity = int(d.counter % 2)
		} else {
			d.skipParity = 1 - int(d.counter%2)
		}
	}

	d.prevFeatureT = t
	d.havePrevFeature = true

	if d.skipParity < 0 {
		// Undecided: spec's open question 1 says stay undecided, no
		// invented recovery. Emit nothing until the lock can be formed.
		return false
	}
	return int(d.counter%2) != d.skipParity
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
