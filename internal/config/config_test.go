package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infraconfig "github.com/datacite/lupo-sub003/infrastructure/config"
	"github.com/datacite/lupo-sub003/internal/config"
	"github.com/datacite/lupo-sub003/internal/job"
)

const minimal = `
database:
  user: lupo
  database: lupo
`

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	cfg, err := config.Load(writeYAML(t, minimal))
	require.NoError(t, err)

	assert.Equal(t, "registry", cfg.Service.Name)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "dois", cfg.Elasticsearch.DOIIndex)
	assert.Equal(t, job.DefaultRunnerConfig().Queues, cfg.Jobs.Queues)
	assert.Equal(t, int64(500), cfg.Jobs.BatchSize)
	assert.Equal(t, "0 3 1 * *", cfg.Jobs.RORRefreshSchedule)
	assert.Equal(t, "https://api.crossref.org", cfg.External.Crossref.BaseURL)
	assert.Equal(t, "ror_funder_mapping/", cfg.Storage.Prefix)
	assert.Equal(t, 20, cfg.Query.MaxConnections)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("JOB_QUEUES", "lupo_import")
	t.Setenv("JOB_CONCURRENCY", "12")
	t.Setenv("SERVER_PORT", "3500")

	cfg, err := config.Load(writeYAML(t, minimal+`
jobs:
  batch_size: 1000
  stale_after: 10m
external:
  crossref:
    base_url: http://crossref.test
    delay: 50ms
`))
	require.NoError(t, err)

	assert.Equal(t, []string{job.QueueImport}, cfg.Jobs.Queues)
	assert.Equal(t, 12, cfg.Jobs.Concurrency)
	assert.Equal(t, 3500, cfg.Server.Port)
	assert.Equal(t, int64(1000), cfg.Jobs.BatchSize)
	assert.Equal(t, 10*time.Minute, cfg.Jobs.StaleAfter)
	assert.Equal(t, "http://crossref.test", cfg.External.Crossref.BaseURL)
	assert.Equal(t, 50*time.Millisecond, cfg.External.Crossref.Delay)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{name: "missing database user", body: "database:\n  database: lupo\n", wantField: "database.user"},
		{name: "bad log level", body: minimal + "logging:\n  level: loud\n", wantField: "logging.level"},
		{name: "bad elasticsearch url", body: minimal + "elasticsearch:\n  url: localhost\n", wantField: "elasticsearch.url"},
		{name: "bad external url", body: minimal + "external:\n  orcid:\n    base_url: pub.orcid.org\n", wantField: "external.orcid.base_url"},
		{name: "negative concurrency", body: minimal + "jobs:\n  concurrency: -1\n", wantField: "jobs.concurrency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

			_, err := config.Load(writeYAML(t, tt.body))
			var verr *infraconfig.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}
