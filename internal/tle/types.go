package tle

import (
	"time"

	"github.com/jo11he/my-tudat/internal/transform"
)

// TLEEntry represents a single satellite's two-line element set.
type TLEEntry struct {
	NORADID int
	Name    string
	Epoch   time.Time
	Line1   string
	Line2   string
}

// EpochSeconds returns the element epoch as seconds since J2000.0.
func (e TLEEntry) EpochSeconds() float64 {
	return transform.SecondsSinceJ2000(e.Epoch)
}

// EpochRange represents the minimum and maximum epoch times in a dataset.
type EpochRange struct {
	Min time.Time
	Max time.Time
}

// Contains reports whether t lies within the range widened by margin on both sides.
func (r EpochRange) Contains(t time.Time, margin time.Duration) bool {
	return !t.Before(r.Min.Add(-margin)) && !t.After(r.Max.Add(margin))
}

// TLEDataset is the set of entries read from one source.
type TLEDataset struct {
	Source     string
	EpochRange EpochRange
	Satellites []TLEEntry
}

// NewDataset wraps entries and computes their epoch range.
func NewDataset(source string, entries []TLEEntry) *TLEDataset {
	ds := &TLEDataset{Source: source, Satellites: entries}
	for i, e := range entries {
		if i == 0 || e.Epoch.Before(ds.EpochRange.Min) {
			ds.EpochRange.Min = e.Epoch
		}
		if i == 0 || e.Epoch.After(ds.EpochRange.Max) {
			ds.EpochRange.Max = e.Epoch
		}
	}
	return ds
}

// Find returns the entry for a NORAD catalog number. When a source lists the
// same object more than once the newest epoch wins.
func (d *TLEDataset) Find(noradID int) (TLEEntry, bool) {
	var (
		best  TLEEntry
		found bool
	)
	for _, e := range d.Satellites {
		if e.NORADID != noradID {
			continue
		}
		if !found || e.Epoch.After(best.Epoch) {
			best, found = e, true
		}
	}
	return best, found
}
