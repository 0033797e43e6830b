package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	defaultPath := filepath.Join(dir, "default.json")
	prefs := filepath.Join(dir, "prefs")
	stakesPath := filepath.Join(dir, "stakes.yaml")
	configPath := filepath.Join(dir, "config.yaml")
	metricsPath := filepath.Join(dir, "metrics.prom")

	writeFile(t, defaultPath, `[{"source_name": "x", "label_weights": {"news": 0.5}}]`)
	writeFile(t, filepath.Join(prefs, "v1.json"), `[{"source_name": "x", "label_weights": {"news": 1.0}}]`)
	writeFile(t, filepath.Join(prefs, "v2.json"), `not json`)
	writeFile(t, stakesPath, "- hotkey: v1\n  stake: 1\n- hotkey: v2\n  stake: 1\n- hotkey: v3\n")
	writeFile(t, configPath, "aggregation:\n  total_vali_weight: 0.3\n  amplification_factor: 3\nretrieval:\n  rate_limit_per_second: 0\n")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{
		"-config", configPath,
		"-default", defaultPath,
		"-preferences", prefs,
		"-stakes", stakesPath,
		"-scraping-plan",
		"-metrics", metricsPath,
	}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	var out output
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))

	assert.False(t, out.Fallback)
	assert.Equal(t, 720, out.MaxAgeInHours)
	assert.Equal(t, 3, out.Participants)
	assert.Equal(t, 1, out.Submitters)
	assert.Equal(t, []skipped{{Hotkey: "v2", Reason: "malformed document"}}, out.Skipped)

	require.Len(t, out.Total, 2)
	assert.Equal(t, "reddit", out.Total[0].SourceName)
	assert.Empty(t, out.Total[0].LabelWeights)
	assert.Equal(t, "x", out.Total[1].SourceName)
	assert.InDelta(t, 1.7857142857, out.Total[1].LabelWeights["news"], 1e-9)

	require.NotNil(t, out.ScrapingPlan)
	assert.Equal(t, []string{"news"}, out.ScrapingPlan.ScraperConfigs[0].LabelsToScrape[0].LabelChoices)

	metrics, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `desirability_passes_total{outcome="success"} 1`)
	assert.Contains(t, string(metrics), "desirability_preference_fetches_total")

	assert.Contains(t, stderr.String(), "participant treated as non-submitting")
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	badDefault := filepath.Join(dir, "bad.json")
	writeFile(t, badDefault, `[{"source_name": "youtube", "label_weights": {}}]`)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "missing flags", args: nil, wantErr: "required"},
		{
			name:    "malformed default",
			args:    []string{"-default", badDefault, "-preferences", dir, "-stakes", filepath.Join(dir, "s.yaml")},
			wantErr: "default document",
		},
		{
			name:    "missing config",
			args:    []string{"-config", filepath.Join(dir, "nope.yaml"), "-default", badDefault, "-preferences", dir, "-stakes", "s"},
			wantErr: "load config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(context.Background(), tt.args, &stdout, &stderr)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Empty(t, stdout.String())
		})
	}
}
