// Package compound describes entries of a reference compound catalogue and
// the matches found for measured features.
package compound

import (
	"math"
)

// Ionisation is the polarity a compound was observed under.
type Ionisation string

const (
	Positive Ionisation = "POS"
	Negative Ionisation = "NEG"
	AnyMode  Ionisation = ""
)

// Compound is one catalogue entry.
type Compound struct {
	ID            int64      `db:"id" json:"id"`
	Name          string     `db:"name" json:"name"`
	Formula       string     `db:"formula" json:"formula"`
	Adduct        string     `db:"adduct" json:"adduct"`
	MZ            float64    `db:"mz" json:"mz"`
	RetentionTime float64    `db:"retention_time" json:"retentionTime"`
	Ionisation    Ionisation `db:"ionisation" json:"ionisation"`
	Source        string     `db:"source" json:"source"`
}

// Query selects catalogue entries near a measured feature.
type Query struct {
	MZ         float64
	RT         float64 // minutes; NaN matches any retention time
	Ionisation Ionisation
	PPM        float64
	RTWindow   float64
}

// MZBounds returns the m/z interval covered by the ppm tolerance.
func (q Query) MZBounds() (float64, float64) {
	d := q.MZ * q.PPM * 1e-6
	return q.MZ - d, q.MZ + d
}

// Match is a catalogue entry within tolerance of a feature.
type Match struct {
	Compound
	PPMError float64 `json:"ppmError"`
	RTError  float64 `json:"rtError"`
}

// Score orders matches: smaller is better. The m/z error counts in ppm, the
// retention time error in window fractions.
func (m Match) Score(q Query) float64 {
	s := math.Abs(m.PPMError) / math.Max(q.PPM, 1e-9)
	if !math.IsNaN(m.RTError) && q.RTWindow > 0 {
		s += math.Abs(m.RTError) / q.RTWindow
	}
	return s
}

// NewMatch computes the errors of c against q.
func NewMatch(c Compound, q Query) Match {
	m := Match{Compound: c, RTError: math.NaN()}
	m.PPMError = (c.MZ - q.MZ) / q.MZ * 1e6
	if !math.IsNaN(q.RT) {
		m.RTError = c.RetentionTime - q.RT
	}
	return m
}
