package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixelqc/internal/config"
	"pixelqc/internal/infrastructure"
)

const (
	fineCSV = `FID_pixelc,grid_code
1,10
1,10
2,10
2,30
3,10
3,14
`
	secondaryCSV = `FID_pixelc,grid_code,name
1,40,a
2,45,b
3,60,c
`
	bandsJSON = `{
  "percentage": 0.5,
  "data_groups_explanation": [
    {"name": "low", "from": 0, "to": 50},
    {"name": "high", "from": 50, "to": 0}
  ]
}`
)

// newBase lays out a base directory with the inputs under data/input and the
// band configuration at its default location
func newBase(t *testing.T, bands string) string {
	t.Helper()
	infrastructure.ResetLoggerForTesting()

	base := t.TempDir()
	paths := config.NewPaths(base)
	require.NoError(t, os.MkdirAll(paths.InputDir, 0755))
	require.NoError(t, os.WriteFile(paths.GetInputPath("fine.csv"), []byte(fineCSV), 0644))
	require.NoError(t, os.WriteFile(paths.GetInputPath("lst.csv"), []byte(secondaryCSV), 0644))
	require.NoError(t, os.WriteFile(paths.BandConfigFile, []byte(bands), 0644))
	return base
}

func TestRun(t *testing.T) {
	base := newBase(t, bandsJSON)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(),
		[]string{"-base", base, "-fine", "fine.csv", "-secondary", "lst.csv", "-run-id", "t1"},
		&stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "run t1 completed")
	assert.Contains(t, out, "band low [-inf, 50): kept 1 of 2")
	assert.Contains(t, out, "band high [50, +inf): kept 0 of 1")
	assert.Contains(t, out, "retained rows: 1")

	assert.DirExists(t, config.NewPaths(base).LogsDir)

	reports := config.NewPaths(base).ReportsDir
	assert.FileExists(t, filepath.Join(reports, "cleaned_data_t1.xlsx"))
	assert.FileExists(t, filepath.Join(reports, "scatter_t1.csv"))
	assert.FileExists(t, filepath.Join(reports, "manifest_t1.json"))
}

func TestRun_ExplicitOutputAndBands(t *testing.T) {
	base := newBase(t, bandsJSON)
	out := filepath.Join(t.TempDir(), "custom")
	bands := filepath.Join(t.TempDir(), "bands.yaml")
	require.NoError(t, os.WriteFile(bands, []byte("percentage: 1\ndata_groups_explanation:\n  - name: all\n"), 0644))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"-base", base,
		"-fine", filepath.Join(base, "data", "input", "fine.csv"),
		"-secondary", "lst.csv",
		"-bands", bands,
		"-out", out,
	}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	assert.Contains(t, stdout.String(), "retained rows: 3")
	assert.FileExists(t, filepath.Join(out, "cleaned_data.xlsx"))
	assert.FileExists(t, filepath.Join(out, "manifest.json"))
}

func TestRun_Failure(t *testing.T) {
	base := newBase(t, `{"percentage": 0, "data_groups_explanation": [{"name": "all"}]}`)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(),
		[]string{"-base", base, "-fine", "fine.csv", "-secondary", "lst.csv"},
		&stdout, &stderr)

	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stdout.String(), "failed")
	assert.Contains(t, stderr.String(), "INVALID_PERCENTAGE")
}

func TestRun_BaseNotCreatable(t *testing.T) {
	infrastructure.ResetLoggerForTesting()
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, "data"), []byte("x"), 0644))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(),
		[]string{"-base", base, "-fine", "fine.csv", "-secondary", "lst.csv"},
		&stdout, &stderr)
	assert.Equal(t, exitFailure, code)
	assert.Empty(t, stdout.String())
}

func TestRun_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
	}{
		{name: "no arguments", args: nil, code: exitUsage},
		{name: "missing secondary", args: []string{"-fine", "fine.csv"}, code: exitUsage},
		{name: "unknown flag", args: []string{"-bogus"}, code: exitUsage},
		{name: "version", args: []string{"-version"}, code: exitOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, tt.code, run(context.Background(), tt.args, &stdout, &stderr))
		})
	}

	var stdout bytes.Buffer
	run(context.Background(), []string{"-version"}, &stdout, &bytes.Buffer{})
	assert.True(t, strings.HasPrefix(stdout.String(), "pixelqc v"+config.AppVersion))
}

func TestResolveInput(t *testing.T) {
	base := newBase(t, bandsJSON)
	paths := config.NewPaths(base)

	assert.Equal(t, paths.GetInputPath("fine.csv"), resolveInput("fine.csv", paths))
	assert.Equal(t, "missing.csv", resolveInput("missing.csv", paths))

	abs := filepath.Join(base, "elsewhere.csv")
	assert.Equal(t, abs, resolveInput(abs, paths))
}
