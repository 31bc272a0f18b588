package dataset

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"metaboqc/domain/core"
)

// Axis names the table an exclusion removed rows from.
type Axis string

const (
	AxisSamples  Axis = "Samples"
	AxisFeatures Axis = "Features"
)

// Exclusion records rows removed by one ApplyMasks call. For samples, Values
// holds the removed intensity rows (samples x features); for features it
// holds the removed intensity columns transposed (features x samples).
type Exclusion struct {
	Axis    Axis
	Reason  string
	Indices []int
	Rows    Table
	Values  *mat.Dense
}

// WithMasks returns a dataset with the given masks. A nil mask keeps the
// current one.
func (d *Dataset) WithMasks(sampleMask, featureMask []bool) (*Dataset, error) {
	if sampleMask != nil && len(sampleMask) != d.NSamples() {
		return nil, fmt.Errorf("%w: sample mask has %d entries for %d samples", core.ErrShapeMismatch, len(sampleMask), d.NSamples())
	}
	if featureMask != nil && len(featureMask) != d.NFeatures() {
		return nil, fmt.Errorf("%w: feature mask has %d entries for %d features", core.ErrShapeMismatch, len(featureMask), d.NFeatures())
	}
	out := d.clone()
	if sampleMask != nil {
		out.sampleMask = append([]bool(nil), sampleMask...)
	}
	if featureMask != nil {
		out.featureMask = append([]bool(nil), featureMask...)
	}
	return out, nil
}

// ApplyMasks removes the rows and columns whose mask entry is false, records
// them in the exclusion history and resets both masks to all-true. On a
// dataset whose masks are already all-true it returns the receiver.
func (d *Dataset) ApplyMasks(reason string) *Dataset {
	keepS, dropS := split(d.sampleMask)
	keepF, dropF := split(d.featureMask)
	if len(dropS) == 0 && len(dropF) == 0 {
		return d
	}

	out := d.clone()
	if len(dropS) > 0 {
		out.excluded = append(out.excluded, Exclusion{
			Axis:    AxisSamples,
			Reason:  reason,
			Indices: dropS,
			Rows:    d.samples.Take(dropS),
			Values:  takeDense(d.x, dropS, seq(d.NFeatures()), false),
		})
	}
	if len(dropF) > 0 {
		out.excluded = append(out.excluded, Exclusion{
			Axis:    AxisFeatures,
			Reason:  reason,
			Indices: dropF,
			Rows:    d.features.Take(dropF),
			Values:  takeDense(d.x, seq(d.NSamples()), dropF, true),
		})
	}

	out.samples = d.samples.Take(keepS)
	out.features = d.features.Take(keepF)
	out.x = takeDense(d.x, keepS, keepF, false)
	out.sampleMask = allTrue(len(keepS))
	out.featureMask = allTrue(len(keepF))
	out.correction = d.correction.take(keepS, keepF)
	return out
}

func split(mask []bool) (keep, drop []int) {
	for i, m := range mask {
		if m {
			keep = append(keep, i)
		} else {
			drop = append(drop, i)
		}
	}
	return keep, drop
}

func seq(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = i
	}
	return s
}

// takeDense copies the selected rows and columns, transposed when asked. It
// returns nil when the selection is empty.
func takeDense(x *mat.Dense, rows, cols []int, transpose bool) *mat.Dense {
	if x == nil || len(rows) == 0 || len(cols) == 0 {
		return nil
	}
	if transpose {
		out := mat.NewDense(len(cols), len(rows), nil)
		for i, r := range rows {
			for j, c := range cols {
				out.Set(j, i, x.At(r, c))
			}
		}
		return out
	}
	out := mat.NewDense(len(rows), len(cols), nil)
	for i, r := range rows {
		for j, c := range cols {
			out.Set(i, j, x.At(r, c))
		}
	}
	return out
}

// Subset returns the dataset restricted to the masked-in samples and features
// without touching the exclusion history. Used for statistics that operate on
// the currently selected rows only.
func (d *Dataset) Subset() *Dataset {
	keepS, dropS := split(d.sampleMask)
	keepF, dropF := split(d.featureMask)
	if len(dropS) == 0 && len(dropF) == 0 {
		return d
	}
	out := d.clone()
	out.samples = d.samples.Take(keepS)
	out.features = d.features.Take(keepF)
	out.x = takeDense(d.x, keepS, keepF, false)
	out.sampleMask = allTrue(len(keepS))
	out.featureMask = allTrue(len(keepF))
	out.correction = d.correction.take(keepS, keepF)
	return out
}
