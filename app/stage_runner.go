package app

import (
	"context"
	"fmt"
	"time"

	"metaboqc/internal"
	"metaboqc/internal/metrics"
)

// Stage names used in timings, logs and metrics.
const (
	StageNMRQC      = "nmr_qc"
	StageLOQMerge   = "loq_merge"
	StageCorrection = "batch_correction"
	StageSelection  = "feature_selection"
	StagePCA        = "pca"
)

// StageTiming records how long one stage took.
type StageTiming struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration"`
	Err      string        `json:"error,omitempty"`
}

// StageRunner executes pipeline stages in order, timing each one
type StageRunner struct {
	logger  *internal.Logger
	timings []StageTiming
}

// NewStageRunner creates a new stage runner
func NewStageRunner(logger *internal.Logger) *StageRunner {
	return &StageRunner{logger: logger}
}

// Run executes fn as the named stage. Context cancellation is checked before
// the stage starts.
func (r *StageRunner) Run(ctx context.Context, stage string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	r.logger.Debug("Starting stage %s", stage)
	err := fn(ctx)
	elapsed := time.Since(start)
	metrics.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())

	t := StageTiming{Stage: stage, Duration: elapsed}
	if err != nil {
		t.Err = err.Error()
		r.logger.Error("Stage %s failed after %.2fms: %v", stage, float64(elapsed.Nanoseconds())/1e6, err)
		r.timings = append(r.timings, t)
		return fmt.Errorf("%s: %w", stage, err)
	}
	r.logger.Info("Stage %s completed in %.2fms", stage, float64(elapsed.Nanoseconds())/1e6)
	r.timings = append(r.timings, t)
	return nil
}

// Timings returns the stages run so far.
func (r *StageRunner) Timings() []StageTiming {
	return append([]StageTiming(nil), r.timings...)
}
