package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteErrorLog(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 1, 15, 14, 30, 22, 0, time.UTC)

	path, err := WriteErrorLog(nil, dir, now)
	require.NoError(t, err)
	assert.Empty(t, path)

	path, err = WriteErrorLog([]ErrorLogEntry{
		{
			Timestamp:    now,
			FileName:     "personio_2023_06.csv",
			ErrorType:    "InvalidDate",
			ErrorMessage: "bad date",
			RowNumber:    3,
			FieldName:    "Datum",
			FieldValue:   "2023-06-01",
		},
		{
			Timestamp:    now,
			FileName:     "Gehalt_Maerz.xlsx",
			ErrorType:    "InternalError",
			ErrorMessage: "disk full",
		},
	}, dir, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "error_log_20240115_143022.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.True(t, strings.HasPrefix(content, "sepacetamol - Error Log\nGenerated: 2024-01-15 14:30:22\nTotal Errors: 2\n"))
	assert.Contains(t, content, "\nError #1\n  Timestamp:      2024-01-15 14:30:22\n  File:           personio_2023_06.csv\n")
	assert.Contains(t, content, "  Message:        bad date\n  Row Number:     3\n  Field:          Datum\n  Value:          2023-06-01\n")
	assert.Contains(t, content, "\nError #2\n")
	assert.Contains(t, content, "  Message:        disk full\n\n")
	assert.Equal(t, 1, strings.Count(content, "Row Number:"))
	assert.True(t, strings.HasSuffix(content, "End of Error Log\n"))
}

func TestWriteErrorLogMissingDirectory(t *testing.T) {
	_, err := WriteErrorLog([]ErrorLogEntry{{FileName: "x.csv"}}, filepath.Join(t.TempDir(), "absent"), time.Now())
	assert.Error(t, err)
}

func TestWriteSummaryLog(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC)

	path, err := WriteSummaryLog(ProcessingSummary{
		StartTime:       start,
		EndTime:         start.Add(2 * time.Second),
		TotalFiles:      2,
		SuccessfulFiles: 1,
		FailedFiles:     1,
		TotalRecords:    12,
		ProcessedFiles: []ProcessedFileInfo{{
			InputFile:   "a.xlsx",
			OutputFile:  "a.xml",
			ArchivePath: "archive/a.xlsx",
			Profile:     "salary",
			Records:     12,
		}},
		FailedFilesList: []FailedFileInfo{{InputFile: "b.csv", ErrorType: "InvalidDate", ErrorMessage: "row 3: bad"}},
	}, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "processing_summary_20240115_143002.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "  Duration:       2s\n")
	assert.Contains(t, content, "  Total Records:  12\n")
	assert.Contains(t, content, "  Output:       a.xml\n  Archive:      archive/a.xlsx\n  Profile:      salary\n")
	assert.Contains(t, content, "Failed Files:\n")
	assert.Contains(t, content, "  Error: row 3: bad\n")
	assert.True(t, strings.HasSuffix(content, "End of Summary\n"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteSummaryLogWithoutFiles(t *testing.T) {
	start := time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC)

	path, err := WriteSummaryLog(ProcessingSummary{StartTime: start, EndTime: start}, t.TempDir())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.NotContains(t, content, "Successful Files:")
	assert.NotContains(t, content, "Failed Files:")
	assert.NotContains(t, content, "Archive:")
	assert.Contains(t, content, "  Duration:       0s\n")
}
