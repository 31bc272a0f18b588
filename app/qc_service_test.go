package app

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaboqc/domain/core"
	"metaboqc/domain/dataset"
	"metaboqc/domain/sop"
	"metaboqc/internal/testkit"
)

func TestDefaultPipelineOptions(t *testing.T) {
	assert.Equal(t, PipelineOptions{Correct: true, Select: true, Analyse: true}, DefaultPipelineOptions(sop.PlatformMS))
	assert.Equal(t, PipelineOptions{Correct: true, Analyse: true}, DefaultPipelineOptions(sop.PlatformTargetedMS))
	assert.Equal(t, PipelineOptions{Analyse: true, ExcludeNMRFailures: true}, DefaultPipelineOptions(sop.PlatformNMR))
}

func TestRunMSPipeline(t *testing.T) {
	d := testkit.MSDataset(t, testkit.MSOptions{NoisyFeatures: []int{0, 1}})
	svc := NewQCService(2)

	res, err := svc.Run(context.Background(), d, DefaultPipelineOptions(sop.PlatformMS))
	require.NoError(t, err)

	var stages []string
	for _, tm := range res.Timings {
		stages = append(stages, tm.Stage)
		assert.Empty(t, tm.Err)
	}
	if diff := cmp.Diff([]string{StageCorrection, StageSelection, StagePCA}, stages); diff != "" {
		t.Errorf("stages mismatch (-want +got):\n%s", diff)
	}

	assert.Same(t, d, res.Input)
	assert.Equal(t, dataset.Uncorrected, res.PreCorrection.Correction().State)
	assert.Equal(t, dataset.Corrected, res.Dataset.Correction().State)
	require.NotNil(t, res.Correction)
	require.NotNil(t, res.Selection)
	assert.False(t, res.Selection.Pass[0])
	assert.False(t, res.Selection.Pass[1])
	assert.Equal(t, res.Selection.Pass, res.Dataset.FeatureMask())
	require.NotNil(t, res.PCA)
	assert.Equal(t, d.SOP().Fingerprint(), res.Fingerprint)
	assert.False(t, res.RunID.String() == "")
}

func TestRunContinuesWhenCorrectionFails(t *testing.T) {
	d := testkit.MSDataset(t, testkit.MSOptions{})
	batch, err := d.SampleFloats(dataset.ColCorrectionBatch)
	require.NoError(t, err)
	roles := d.Roles()
	mask := d.SampleMask()
	for i := range mask {
		if roles.SP[i] && batch[i] == 2 {
			mask[i] = false
		}
	}
	d, err = d.WithMasks(mask, nil)
	require.NoError(t, err)

	res, err := NewQCService(1).Run(context.Background(), d, DefaultPipelineOptions(sop.PlatformMS))
	require.NoError(t, err)
	assert.Nil(t, res.Correction)
	assert.Equal(t, dataset.CorrectionFailed, res.Dataset.Correction().State)
	assert.Contains(t, res.Dataset.Correction().Reason, "correction batch 2")
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], StageCorrection)
	assert.NotNil(t, res.Selection)
}

func TestCorrectTransitions(t *testing.T) {
	ctx := context.Background()
	svc := NewQCService(1)

	nmr := testkit.NMRDataset(t, testkit.NMROptions{})
	_, _, err := svc.Correct(ctx, nmr)
	assert.ErrorIs(t, err, core.ErrWrongPlatform)

	d := testkit.MSDataset(t, testkit.MSOptions{})
	corrected, r, err := svc.Correct(ctx, d)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, dataset.Corrected, corrected.Correction().State)
	assert.Equal(t, dataset.Uncorrected, d.Correction().State)

	_, _, err = svc.Correct(ctx, corrected)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
}

func TestRunNMRExcludesFailures(t *testing.T) {
	d := testkit.NMRDataset(t, testkit.NMROptions{Broad: []int{3}})
	opts := DefaultPipelineOptions(sop.PlatformNMR)
	opts.Analyse = false
	res, err := NewQCService(1).Run(context.Background(), d, opts)
	require.NoError(t, err)
	require.NotNil(t, res.NMR)
	assert.Nil(t, res.Correction)
	assert.True(t, res.NMR.Flags[dataset.ColLineWidthFail][3])
	assert.False(t, res.Dataset.SampleMask()[3])
}

func TestRunTargetedMergesLimits(t *testing.T) {
	d := testkit.TargetedDataset(t, testkit.TargetedOptions{Crossed: []int{1}})
	opts := DefaultPipelineOptions(sop.PlatformTargetedMS)
	opts.Analyse = false
	res, err := NewQCService(1).Run(context.Background(), d, opts)
	require.NoError(t, err)
	require.NotNil(t, res.LOQ)
	assert.Contains(t, res.LOQ.Demoted, 1)
	assert.Equal(t, StageLOQMerge, res.Timings[0].Stage)
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := testkit.MSDataset(t, testkit.MSOptions{})
	_, err := NewQCService(1).Run(ctx, d, DefaultPipelineOptions(sop.PlatformMS))
	assert.ErrorIs(t, err, context.Canceled)
}
