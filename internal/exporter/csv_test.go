package exporter

import (
	"bytes"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteSimpleCSV(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(dir)

	err := w.WriteSimpleCSV("out.csv",
		[]string{"series", "value"},
		[][]string{{"a", "1.5"}, {"b", "2.5"}},
	)
	require.NoError(t, err)

	rows := readCSV(t, filepath.Join(dir, "out.csv"))
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"series", "value"}, rows[0])
	assert.Equal(t, []string{"b", "2.5"}, rows[2])

	// BOM prefix is present for Excel compatibility.
	raw, err := os.ReadFile(filepath.Join(dir, "out.csv"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}))
}

func TestWriteCSVCreatesNestedDirectories(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(dir)

	err := w.WriteSimpleCSV(filepath.Join("nested", "deep", "out.csv"),
		[]string{"h"}, [][]string{{"v"}})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "nested", "deep", "out.csv"))
}

func TestAppendToCSV(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(dir)

	require.NoError(t, w.WriteSimpleCSV("out.csv", []string{"h"}, [][]string{{"1"}}))
	require.NoError(t, w.AppendToCSV("out.csv", [][]string{{"2"}, {"3"}}))

	rows := readCSV(t, filepath.Join(dir, "out.csv"))
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"3"}, rows[3])
}

func TestStreamWriter(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(dir)

	stream, err := w.CreateStreamWriter("stream.csv", []string{"series", "error"})
	require.NoError(t, err)

	require.NoError(t, stream.WriteRecord([]string{"a", "0.5"}))
	require.NoError(t, stream.WriteRecord([]string{"b", "-1.25"}))
	require.NoError(t, stream.Close())

	rows := readCSV(t, filepath.Join(dir, "stream.csv"))
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"a", "0.5"}, rows[1])
}

func TestResolvePathAbsolute(t *testing.T) {
	w := NewCSVWriter("/tmp/reports")
	abs := filepath.Join(t.TempDir(), "direct.csv")
	assert.Equal(t, abs, w.resolvePath(abs))
	assert.Equal(t, filepath.Join("/tmp/reports", "rel.csv"), w.resolvePath("rel.csv"))
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "3.2500", formatFloat(3.25))
	assert.Equal(t, "", formatFloat(math.NaN()))
	assert.Equal(t, "42", formatInt(42))
}
