package container

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaboqc/domain/compound"
	"metaboqc/domain/sop"
	"metaboqc/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Log: config.LogConfig{Level: "INFO"},
		QC:  config.QCConfig{SOP: "GenericMS", OutputDir: t.TempDir(), Workers: 2},
		Catalogue: config.CatalogueConfig{
			PPMTol:      10,
			RTTolerance: 0.1,
		},
	}
}

func TestNewRejectsNilConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestNewWithoutCatalogue(t *testing.T) {
	cfg := testConfig(t)
	c, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg.QC.OutputDir, c.Index.Dir())

	require.NoError(t, c.InitCatalogue(context.Background()))
	assert.Nil(t, c.Catalogue)

	s, err := sop.Default("GenericMS")
	require.NoError(t, err)
	svc, err := c.ReportService(s.Presentation, compound.Positive)
	require.NoError(t, err)
	assert.NotNil(t, svc)
	assert.NoError(t, c.Shutdown())
}

func TestInitCatalogue(t *testing.T) {
	cfg := testConfig(t)
	cfg.Catalogue.DSN = "sqlite://" + filepath.Join(t.TempDir(), "compounds.db")
	c, err := New(cfg)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.InitCatalogue(ctx))
	require.NotNil(t, c.Catalogue)
	first := c.Catalogue
	require.NoError(t, c.InitCatalogue(ctx))
	assert.Same(t, first, c.Catalogue)

	n, err := c.Catalogue.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, c.Shutdown())
	assert.Nil(t, c.Catalogue)
}
