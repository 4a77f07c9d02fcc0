// =============================================================================
// sepacetamol - Converter Module
// =============================================================================
//
// This module contains the conversion pipeline for a single input file. It
// orchestrates reading, mapping, rendering and writing:
//
// CONVERSION PIPELINE:
//   1. Read the spreadsheet (xlsx or csv, detected from the content)
//   2. Apply the profile's transformation rules to named columns (DATEV)
//   3. Build the records:
//        - sepa : payment workbook -> pain.001.001.03 XML
//        - datev: Personio export  -> EXTF booking batch CSV
//   4. Write the output file atomically
//   5. Archive the processed files
//
// CONCURRENCY:
//   A Converter holds no shared mutable state. The process command runs one
//   Converter per file in its own goroutine.
//
// =============================================================================

package converter

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ginjaninja78/sepacetamol/internal/config"
	"github.com/ginjaninja78/sepacetamol/internal/observability"
	"github.com/ginjaninja78/sepacetamol/internal/personio"
	"github.com/ginjaninja78/sepacetamol/internal/sepa"
	"github.com/ginjaninja78/sepacetamol/internal/sheet"
	"github.com/ginjaninja78/sepacetamol/pkg/utils"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of processing a single file.
type Result struct {
	// FilePath is the path to the input file that was processed.
	FilePath string

	// Profile is the code of the profile used for the file.
	Profile string

	// Kind is the output kind, "sepa" or "datev".
	Kind string

	// OutputFile is the path to the generated file.
	// This is empty if processing failed or ran dry.
	OutputFile string

	// ArchivePath is where the input file was moved to.
	ArchivePath string

	// Success indicates whether the processing was successful.
	Success bool

	// Error contains the error if processing failed.
	Error error

	// Output is the rendered file, also set on dry runs.
	Output *Output

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	// RowsProcessed is the number of non-empty spreadsheet rows read.
	RowsProcessed int

	// Records is the number of payments or bookings written.
	Records int

	// CellsTransformed is the number of cells changed by transformation rules.
	CellsTransformed int

	// ProcessingTime is the time taken to process the file.
	ProcessingTime time.Duration
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Logger is the logging surface of the pipeline. *zap.SugaredLogger
// satisfies it.
type Logger interface {
	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
}

// Converter handles the conversion of a single input file.
type Converter struct {
	path       string
	profile    *config.Profile
	mainConfig *config.MainConfig

	files   *utils.FileManager
	logger  Logger
	metrics *observability.Metrics
	dryRun  bool
	now     func() time.Time
	sepaOps []sepa.Option
}

// Option configures a Converter.
type Option func(*Converter)

// WithLogger replaces the no-op logger.
func WithLogger(logger Logger) Option {
	return func(c *Converter) { c.logger = logger }
}

// WithMetrics records every run in m.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Converter) { c.metrics = m }
}

// WithFileManager replaces the file manager built from the main configuration.
func WithFileManager(fm *utils.FileManager) Option {
	return func(c *Converter) { c.files = fm }
}

// WithDryRun converts without writing or archiving anything.
func WithDryRun(dryRun bool) Option {
	return func(c *Converter) { c.dryRun = dryRun }
}

// WithClock fixes the time used for output names and SEPA timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Converter) { c.now = now }
}

// WithSEPAOptions passes builder options to SEPA conversions.
func WithSEPAOptions(opts ...sepa.Option) Option {
	return func(c *Converter) { c.sepaOps = append(c.sepaOps, opts...) }
}

// =============================================================================
// CONSTRUCTOR
// =============================================================================

// New creates a Converter for one input file.
//
// PARAMETERS:
//   - path:       The path to the input file.
//   - profile:    The profile matched for the file.
//   - mainConfig: The main application configuration.
func New(path string, profile *config.Profile, mainConfig *config.MainConfig, opts ...Option) *Converter {
	c := &Converter{
		path:       path,
		profile:    profile,
		mainConfig: mainConfig,
		logger:     zap.NewNop().Sugar(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.files == nil {
		c.files = utils.NewFileManager(mainConfig.InputDir, mainConfig.OutputDir,
			mainConfig.InputArchiveDir, mainConfig.OutputArchiveDir)
		c.files.Now = c.now
	}
	return c
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the conversion pipeline for the file.
//
// RETURNS:
//   - A Result describing the outcome. Run never panics on bad input; every
//     failure is reported in Result.Error.
func (c *Converter) Run(ctx context.Context) (result Result) {
	startTime := time.Now()
	result = Result{
		FilePath: c.path,
		Profile:  c.profile.Code,
		Kind:     c.profile.Kind,
	}

	defer func() {
		result.Stats.ProcessingTime = time.Since(startTime)
		c.metrics.RecordConversion(result.Kind, result.Stats.ProcessingTime, result.Stats.Records, result.Error)
	}()

	if err := ctx.Err(); err != nil {
		result.Error = err
		return result
	}

	c.logger.Infof("Processing file: %s (profile %s)", c.path, c.profile.Code)

	// =========================================================================
	// STEP 1: READ THE SPREADSHEET
	// =========================================================================

	s, err := sheet.ReadFile(c.path, c.profile.CSVSettings)
	if err != nil {
		result.Error = fmt.Errorf("failed to read %s: %w", filepath.Base(c.path), err)
		return result
	}

	c.logger.Debugf("Read %d rows from %s sheet %q", len(s.Rows), s.Format, s.Name)

	// =========================================================================
	// STEPS 2-3: TRANSFORM AND BUILD RECORDS
	// =========================================================================

	output, err := ConvertSheet(s, c.job())
	if err != nil {
		result.Error = err
		return result
	}

	result.Output = output
	result.Stats.RowsProcessed = output.Rows
	result.Stats.Records = output.Records
	result.Stats.CellsTransformed = output.CellsTransformed

	c.logger.Debugf("Built %d records, %d cells transformed", output.Records, output.CellsTransformed)

	if c.dryRun {
		c.logger.Infof("Dry run: %s would be written", output.Filename)
		result.Success = true
		return result
	}

	if err := ctx.Err(); err != nil {
		result.Error = err
		return result
	}

	// =========================================================================
	// STEP 4: WRITE OUTPUT FILE
	// =========================================================================

	outputPath, err := c.files.WriteOutput(c.outputFileName(output), output.Content)
	if err != nil {
		result.Error = fmt.Errorf("failed to write output: %w", err)
		return result
	}

	result.OutputFile = outputPath
	c.logger.Infof("Wrote output to: %s", outputPath)

	// =========================================================================
	// STEP 5: ARCHIVE FILES
	// =========================================================================
	// Archive failures are logged and do not fail the file; the output exists.

	archivePath, err := c.files.ArchiveInputFile(c.path)
	if err != nil {
		c.logger.Warnf("Failed to archive input file: %v", err)
	} else {
		result.ArchivePath = archivePath
	}
	if _, err := c.files.ArchiveOutputFile(outputPath); err != nil {
		c.logger.Warnf("Failed to archive output file: %v", err)
	}

	result.Success = true
	return result
}

// job collects the effective settings of the profile.
func (c *Converter) job() Job {
	opts := append([]sepa.Option{sepa.WithClock(c.now)}, c.sepaOps...)
	return Job{
		Kind:        c.profile.Kind,
		Source:      filepath.Base(c.path),
		Rules:       c.profile.TransformationRules,
		DATEV:       c.mainConfig.DATEVFor(c.profile),
		SEPA:        c.mainConfig.SEPAFor(c.profile),
		SEPAOptions: opts,
	}
}

// outputFileName applies the naming format of the main configuration. The
// {name} placeholder is the natural file name without extension, for example
// EXTF_Personio-2023-06.
func (c *Converter) outputFileName(output *Output) string {
	ext := filepath.Ext(output.Filename)
	name := strings.TrimSuffix(output.Filename, ext)

	return utils.GenerateOutputFileName(c.mainConfig.UUIDFormat, map[string]string{
		"name":    name,
		"profile": c.profile.Code,
	}, ext, c.now())
}

// =============================================================================
// RECORD BUILDING
// =============================================================================

// Job describes one conversion independent of where the sheet came from.
type Job struct {
	// Kind is config.KindSEPA or config.KindDATEV.
	Kind string

	// Source is the base name of the input, used to derive the SEPA file name.
	Source string

	// Rules rewrite named columns before DATEV mapping.
	Rules []config.TransformationRule

	DATEV       config.DATEVConfig
	SEPA        config.SEPAConfig
	SEPAOptions []sepa.Option
}

// Output is a rendered file.
type Output struct {
	Kind        string
	Filename    string
	ContentType string
	Content     []byte

	// Rows is the number of non-empty input rows.
	Rows int

	// Records is the number of payments or bookings.
	Records int

	// CellsTransformed counts the cells changed by transformation rules.
	CellsTransformed int

	// Preview is the parsed payment list of SEPA conversions.
	Preview *sepa.Import
}

// ConvertSheet builds the output of job from a read sheet.
//
// RETURNS:
//   - The rendered output.
//   - The first mapping or validation error, unchanged so that callers can
//     use errors.As on the error types of internal/types.
func ConvertSheet(s *sheet.Sheet, job Job) (*Output, error) {
	switch job.Kind {
	case config.KindDATEV:
		return convertDATEV(s, job)
	case config.KindSEPA:
		return convertSEPA(s, job)
	}
	return nil, fmt.Errorf("unknown conversion kind %q", job.Kind)
}

func convertDATEV(s *sheet.Sheet, job Job) (*Output, error) {
	header, rows, err := s.Table()
	if err != nil {
		return nil, err
	}

	transformed := 0
	if len(job.Rules) > 0 {
		transformer, err := NewTransformer(job.Rules)
		if err != nil {
			return nil, err
		}
		if transformed, err = transformer.TransformRows(header, rows); err != nil {
			return nil, err
		}
	}

	export, err := personio.Convert(header, rows, personio.Settings{
		ConsultantNumber: job.DATEV.ConsultantNumber,
		ClientNumber:     job.DATEV.ClientNumber,
	})
	if err != nil {
		return nil, err
	}

	return &Output{
		Kind:             config.KindDATEV,
		Filename:         export.Filename,
		ContentType:      personio.ContentType,
		Content:          export.Content,
		Rows:             len(rows),
		Records:          len(export.File.Bookings),
		CellsTransformed: transformed,
	}, nil
}

func convertSEPA(s *sheet.Sheet, job Job) (*Output, error) {
	mode, err := sepa.ParseBatchMode(job.SEPA.BatchBooking)
	if err != nil {
		return nil, err
	}

	imp, err := sepa.ReadSheet(s.Rows)
	if err != nil {
		return nil, err
	}
	if job.SEPA.OriginatorBIC != "" {
		imp.OriginatorBIC = job.SEPA.OriginatorBIC
	}

	builder, err := imp.Builder(job.SEPAOptions...)
	if err != nil {
		return nil, err
	}
	content, err := builder.Render(mode)
	if err != nil {
		return nil, err
	}

	filename := builder.Originator().IBAN.String() + ".xml"
	if job.Source != "" {
		filename = sepa.TargetFilename(job.Source)
	}

	return &Output{
		Kind:        config.KindSEPA,
		Filename:    filename,
		ContentType: sepa.ContentType,
		Content:     content,
		Rows:        len(imp.Payments) + 1,
		Records:     len(imp.Payments),
		Preview:     imp,
	}, nil
}
