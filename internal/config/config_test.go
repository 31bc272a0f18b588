package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaboqc/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("QC_SOP", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "GenericMS", cfg.QC.SOP)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 1, cfg.QC.Workers)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.False(t, cfg.Catalogue.Enabled())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("QC_WORKERS", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestLoadRejectsUnknownLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "VERBOSE")

	_, err := Load()
	require.Error(t, err)
}

func TestCatalogueEnabled(t *testing.T) {
	t.Setenv("QC_CATALOGUE_DSN", "file:catalogue.db")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Catalogue.Enabled())
	assert.Equal(t, 10.0, cfg.Catalogue.PPMTol)
}
