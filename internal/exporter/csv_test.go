package exporter

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVWriter_ResolvePath(t *testing.T) {
	dir := t.TempDir()
	writer := NewCSVWriter(dir, nil)

	abs := filepath.Join(t.TempDir(), "abs.csv")
	assert.Equal(t, abs, writer.resolvePath(abs))
	assert.Equal(t, filepath.Join(dir, "rel.csv"), writer.resolvePath("rel.csv"))
	assert.Equal(t, "rel.csv", NewCSVWriter("", nil).resolvePath("rel.csv"))
}

func TestStreamWriter(t *testing.T) {
	writer := NewCSVWriter(t.TempDir(), nil)

	stream, err := writer.CreateStreamWriter("stream.csv", []string{"a", "b"})
	require.NoError(t, err)
	require.NoError(t, stream.WriteRecord([]string{"1", "2"}))
	require.NoError(t, stream.WriteRecord([]string{"3", "4"}))
	require.NoError(t, stream.Close())

	content, err := os.ReadFile(stream.Path())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(content, utf8BOM))
	assert.Equal(t, "a,b\n1,2\n3,4\n", string(content[len(utf8BOM):]))
}

func TestStreamWriter_QuotesSpecialCharacters(t *testing.T) {
	writer := NewCSVWriter(t.TempDir(), nil)

	stream, err := writer.CreateStreamWriter("nested/special.csv", nil)
	require.NoError(t, err)
	require.NoError(t, stream.WriteRecord([]string{"a,b", `say "hi"`, "line\nbreak"}))
	require.NoError(t, stream.Close())

	content, err := os.ReadFile(stream.Path())
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(content, utf8BOM))).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a,b", `say "hi"`, "line\nbreak"}}, records)
}

func TestCSVWriter_ErrorScenarios(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	writer := NewCSVWriter(dir, nil)

	_, err := writer.CreateStreamWriter("file/child.csv", nil)
	assert.Error(t, err)
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "0.1", formatFloat(0.1))
	assert.Equal(t, "0.30000000000000004", formatFloat(0.1+0.2))
	assert.Equal(t, "-40", formatFloat(-40))
	assert.Equal(t, "-9223372036854775808", formatInt(-1<<63))

	assert.Equal(t, "cleaned_data.xlsx", FileName(CleanedDataPrefix, "", "xlsx"))
	assert.Equal(t, "cleaned_data_survey-7.xlsx", FileName(CleanedDataPrefix, "survey-7", "xlsx"))
	assert.Equal(t, "scatter_r1.csv", FileName(ScatterPrefix, "r1", "csv"))
}
