// =============================================================================
// sepacetamol - Run Reports
// =============================================================================
//
// Plain text reports written to the output directory after a processing run:
//   - error_log_YYYYMMDD_HHMMSS.txt           one entry per rejected file
//   - processing_summary_YYYYMMDD_HHMMSS.txt  counts and per-file outcome
//
// Both are rendered from text/template and written atomically.
//
// =============================================================================

package utils

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
	"time"
)

const reportTimeLayout = "2006-01-02 15:04:05"

var reportFuncs = template.FuncMap{
	"stamp": func(t time.Time) string { return t.Format(reportTimeLayout) },
	"inc":   func(i int) int { return i + 1 },
	"rule":  func() string { return strings.Repeat("=", 80) },
	"line":  func() string { return strings.Repeat("-", 80) },
}

// =============================================================================
// ERROR LOG
// =============================================================================

// ErrorLogEntry describes one rejected file. Row, field and value are set
// when the error points at a cell.
type ErrorLogEntry struct {
	Timestamp    time.Time
	FileName     string
	ErrorType    string
	ErrorMessage string
	RowNumber    int
	FieldName    string
	FieldValue   string
}

var errorLogTemplate = template.Must(template.New("error_log").Funcs(reportFuncs).Parse(
	`sepacetamol - Error Log
Generated: {{ stamp .Generated }}
Total Errors: {{ len .Entries }}
{{ rule }}
{{ range $i, $e := .Entries }}
Error #{{ inc $i }}
  Timestamp:      {{ stamp $e.Timestamp }}
  File:           {{ $e.FileName }}
  Error Type:     {{ $e.ErrorType }}
  Message:        {{ $e.ErrorMessage }}
{{- if $e.RowNumber }}
  Row Number:     {{ $e.RowNumber }}
{{- end }}
{{- if $e.FieldName }}
  Field:          {{ $e.FieldName }}
{{- end }}
{{- if $e.FieldValue }}
  Value:          {{ $e.FieldValue }}
{{- end }}
{{ end }}
{{ rule }}
End of Error Log
`))

// WriteErrorLog writes entries to outputDir.
//
// RETURNS:
//   - The path of the log, or "" when there are no entries.
//   - An error if the log cannot be written.
func WriteErrorLog(entries []ErrorLogEntry, outputDir string, now time.Time) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	path := filepath.Join(outputDir, "error_log_"+now.Format("20060102_150405")+".txt")
	data := struct {
		Generated time.Time
		Entries   []ErrorLogEntry
	}{now, entries}

	if err := writeReport(path, errorLogTemplate, data); err != nil {
		return "", fmt.Errorf("failed to write error log: %w", err)
	}
	return path, nil
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary is the outcome of a processing run.
type ProcessingSummary struct {
	StartTime       time.Time
	EndTime         time.Time
	TotalFiles      int
	SuccessfulFiles int
	FailedFiles     int
	SkippedFiles    int
	TotalRows       int
	TotalRecords    int
	ProcessedFiles  []ProcessedFileInfo
	FailedFilesList []FailedFileInfo
}

// Duration is the wall time of the run.
func (s ProcessingSummary) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// ProcessedFileInfo describes a converted file.
type ProcessedFileInfo struct {
	InputFile   string
	OutputFile  string
	ArchivePath string
	Profile     string
	Rows        int
	Records     int
	ProcessTime time.Duration
}

// FailedFileInfo describes a rejected file.
type FailedFileInfo struct {
	InputFile    string
	ErrorMessage string
	ErrorType    string
}

var summaryTemplate = template.Must(template.New("summary").Funcs(reportFuncs).Parse(
	`sepacetamol - Processing Summary
{{ rule }}

Run Information:
  Start Time:     {{ stamp .StartTime }}
  End Time:       {{ stamp .EndTime }}
  Duration:       {{ .Duration }}

Statistics:
  Total Files:    {{ .TotalFiles }}
  Successful:     {{ .SuccessfulFiles }}
  Failed:         {{ .FailedFiles }}
  Skipped:        {{ .SkippedFiles }}
  Total Rows:     {{ .TotalRows }}
  Total Records:  {{ .TotalRecords }}

{{ with .ProcessedFiles -}}
Successful Files:
{{ line }}
{{ range . -}}
  Input:        {{ .InputFile }}
  Output:       {{ .OutputFile }}
{{- if .ArchivePath }}
  Archive:      {{ .ArchivePath }}
{{- end }}
  Profile:      {{ .Profile }}
  Rows:         {{ .Rows }}
  Records:      {{ .Records }}
  Process Time: {{ .ProcessTime }}

{{ end -}}
{{ end -}}
{{ with .FailedFilesList -}}
Failed Files:
{{ line }}
{{ range . -}}
  File:  {{ .InputFile }}
  Type:  {{ .ErrorType }}
  Error: {{ .ErrorMessage }}

{{ end -}}
{{ end -}}
{{ rule }}
End of Summary
`))

// WriteSummaryLog writes summary to outputDir, named after its end time.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (string, error) {
	path := filepath.Join(outputDir, "processing_summary_"+summary.EndTime.Format("20060102_150405")+".txt")

	if err := writeReport(path, summaryTemplate, summary); err != nil {
		return "", fmt.Errorf("failed to write summary: %w", err)
	}
	return path, nil
}

func writeReport(path string, tmpl *template.Template, data any) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return err
	}
	_, err := WriteFileAtomic(path, buf.Bytes())
	return err
}
