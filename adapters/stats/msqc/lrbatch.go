// Package msqc computes the mass-spectrometry QC statistics derived from the
// linearity-reference dilution series: per-series masks, correlation to
// dilution, the saturation summary, plus the TIC, peak width and detector
// voltage summaries shown in feature reports.
package msqc

import (
	"fmt"
	"math"
	"sort"
)

// LRBatch is one contiguous series of linearity-reference injections.
type LRBatch struct {
	Name     string
	Batch    float64
	Detector float64
	Rows     []bool
	Indices  []int
}

// LinearityBatches splits the linearity-reference samples into series. A new
// series starts when the Batch changes, when the detector voltage moves by
// more than tolerance from the first injection of the series, or when any
// other sample was acquired between two linearity-reference injections.
// Samples without a finite run order are ignored. detector may be nil.
func LinearityBatches(runOrder, batch, detector []float64, lr []bool, tolerance float64) []LRBatch {
	n := len(runOrder)
	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if !math.IsNaN(runOrder[i]) {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool { return runOrder[order[a]] < runOrder[order[b]] })

	var out []LRBatch
	var cur *LRBatch
	closeCurrent := func() {
		if cur != nil {
			out = append(out, *cur)
			cur = nil
		}
	}
	for _, i := range order {
		if !lr[i] {
			closeCurrent()
			continue
		}
		det := math.NaN()
		if detector != nil {
			det = detector[i]
		}
		if cur != nil {
			sameBatch := cur.Batch == batch[i] || (math.IsNaN(cur.Batch) && math.IsNaN(batch[i]))
			drift := !math.IsNaN(cur.Detector) && !math.IsNaN(det) && math.Abs(det-cur.Detector) > tolerance
			if !sameBatch || drift {
				closeCurrent()
			}
		}
		if cur == nil {
			cur = &LRBatch{Batch: batch[i], Detector: det, Rows: make([]bool, n)}
		}
		cur.Rows[i] = true
		cur.Indices = append(cur.Indices, i)
	}
	closeCurrent()

	series := make(map[float64]int)
	for k := range out {
		key := out[k].Batch
		if math.IsNaN(key) {
			key = -1
		}
		series[key]++
		if math.IsNaN(out[k].Batch) {
			out[k].Name = fmt.Sprintf("Series %d", series[key])
		} else {
			out[k].Name = fmt.Sprintf("Batch %g Series %d", out[k].Batch, series[key])
		}
	}
	return out
}

// Restrict limits every series to the rows set in keep, preserving the series
// boundaries found on the full injection sequence. Series left empty are
// dropped.
func Restrict(batches []LRBatch, keep []bool) []LRBatch {
	if keep == nil {
		return batches
	}
	out := make([]LRBatch, 0, len(batches))
	for _, b := range batches {
		r := LRBatch{Name: b.Name, Batch: b.Batch, Detector: b.Detector, Rows: make([]bool, len(b.Rows))}
		for _, i := range b.Indices {
			if keep[i] {
				r.Rows[i] = true
				r.Indices = append(r.Indices, i)
			}
		}
		if len(r.Indices) > 0 {
			out = append(out, r)
		}
	}
	return out
}
