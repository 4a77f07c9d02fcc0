// =============================================================================
// sepacetamol - Process Command
// =============================================================================
//
// This file defines the 'process' command, which converts every workbook in
// the input directory according to the profiles in the configs directory.
//
// COMMAND USAGE:
//   sepacetamol process [flags]
//
// FLAGS:
//   --dry-run          : Convert without writing or archiving anything
//   --file             : Process only this file
//   --profile          : Process only files of this profile
//   --recursive        : Include subdirectories of the input directory
//   --prune-archives   : Delete archived files older than this duration
//
// PROCESSING PIPELINE:
//   1. Load the conversion profiles
//   2. Discover files in the input directory
//   3. Match each file to a profile (unmatched files are skipped)
//   4. Convert the files concurrently, at most max_concurrency at a time:
//      a. Read the workbook
//      b. Apply transformation rules
//      c. Build and validate the SEPA or DATEV records
//      d. Write the output file
//      e. Archive input and output
//   5. Write the processing summary and the error log
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ginjaninja78/sepacetamol/internal/config"
	"github.com/ginjaninja78/sepacetamol/internal/converter"
	"github.com/ginjaninja78/sepacetamol/internal/types"
	"github.com/ginjaninja78/sepacetamol/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

type processFlags struct {
	dryRun        bool
	file          string
	profile       string
	recursive     bool
	pruneArchives time.Duration
}

var processOpts processFlags

// inputExtensions are the workbook formats the process command picks up.
var inputExtensions = []string{".xlsx", ".csv"}

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

// processCmd represents the 'process' command.
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Convert every workbook in the input directory",
	Long: `The process command scans the input directory, matches every file to a
conversion profile and writes the SEPA or DATEV file for it.

Files are converted concurrently. A file either converts completely or not at
all; a rejected file stays in the input directory and is listed in the error
log. With continue_on_error set to false the first failure stops the run.

On success:
  - The output file is placed in the output directory
  - The input file is moved to the input archive
  - A copy of the output is kept in the output archive

After the run a processing summary is written to the output directory.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := runProcess(cmd.Context(), cmd.OutOrStdout(), processOpts)
		return err
	},
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.AddCommand(processCmd)

	flags := processCmd.Flags()
	flags.BoolVar(&processOpts.dryRun, "dry-run", false, "Convert without writing or archiving anything")
	flags.StringVar(&processOpts.file, "file", "", "Process only this file")
	flags.StringVar(&processOpts.profile, "profile", "", "Process only files of this profile")
	flags.BoolVar(&processOpts.recursive, "recursive", false, "Include subdirectories of the input directory")
	flags.DurationVar(&processOpts.pruneArchives, "prune-archives", 0, "Delete archived files older than this (e.g. 2160h)")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// processJob is a file with its matched profile.
type processJob struct {
	path    string
	profile *config.Profile
}

// runProcess orchestrates the conversion of the input directory.
//
// RETURNS:
//   - The summary of the run, also when files failed.
//   - An error if the run could not start or any file failed.
func runProcess(ctx context.Context, out io.Writer, opts processFlags) (*utils.ProcessingSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	summary := &utils.ProcessingSummary{StartTime: time.Now()}

	// =========================================================================
	// STEP 1: LOAD PROFILES
	// =========================================================================

	profiles, err := config.LoadProfiles(mainConfig.ConfigsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	if opts.profile != "" {
		profile, ok := profiles[opts.profile]
		if !ok {
			return nil, fmt.Errorf("unknown profile %q", opts.profile)
		}
		profiles = map[string]*config.Profile{opts.profile: profile}
	}
	if len(profiles) == 0 {
		return nil, fmt.Errorf("no profiles found in %s", mainConfig.ConfigsDir)
	}

	logger.Info("profiles loaded", zap.Int("count", len(profiles)))

	// =========================================================================
	// STEP 2: DISCOVER INPUT FILES
	// =========================================================================

	files := utils.NewFileManager(
		mainConfig.InputDir,
		mainConfig.OutputDir,
		mainConfig.InputArchiveDir,
		mainConfig.OutputArchiveDir,
	)
	if err := files.EnsureDirectories(); err != nil {
		return nil, err
	}

	inputs, err := discover(files, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to discover input files: %w", err)
	}

	// =========================================================================
	// STEP 3: MATCH PROFILES
	// =========================================================================

	var jobs []processJob
	for _, path := range inputs {
		profile := config.MatchProfile(path, profiles)
		if profile == nil {
			logger.Warn("no profile matches file, skipping", zap.String("file", path))
			summary.SkippedFiles++
			continue
		}
		jobs = append(jobs, processJob{path: path, profile: profile})
	}
	summary.TotalFiles = len(inputs)

	if len(jobs) == 0 {
		fmt.Fprintln(out, "No matching files found in the input directory.")
		summary.EndTime = time.Now()
		return summary, nil
	}

	logger.Info("processing files", zap.Int("files", len(jobs)), zap.Int("max_concurrency", mainConfig.MaxConcurrency))

	// =========================================================================
	// STEP 4: CONVERT CONCURRENTLY
	// =========================================================================

	results, groupErr := convertAll(ctx, jobs, opts.dryRun)

	// =========================================================================
	// STEP 5: SUMMARY AND LOGS
	// =========================================================================

	var entries []utils.ErrorLogEntry
	for _, result := range results {
		summary.TotalRows += result.Stats.RowsProcessed
		if result.Success {
			summary.SuccessfulFiles++
			summary.TotalRecords += result.Stats.Records
			summary.ProcessedFiles = append(summary.ProcessedFiles, utils.ProcessedFileInfo{
				InputFile:   result.FilePath,
				OutputFile:  result.OutputFile,
				ArchivePath: result.ArchivePath,
				Profile:     result.Profile,
				Rows:        result.Stats.RowsProcessed,
				Records:     result.Stats.Records,
				ProcessTime: result.Stats.ProcessingTime,
			})
			continue
		}

		summary.FailedFiles++
		entry := errorLogEntry(result, time.Now())
		entries = append(entries, entry)
		summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
			InputFile:    result.FilePath,
			ErrorMessage: entry.ErrorMessage,
			ErrorType:    entry.ErrorType,
		})
	}
	summary.SkippedFiles += len(jobs) - len(results)
	summary.EndTime = time.Now()

	printSummary(out, summary, opts.dryRun)

	if !opts.dryRun {
		if path, err := utils.WriteSummaryLog(*summary, mainConfig.OutputDir); err != nil {
			logger.Error("failed to write summary", zap.Error(err))
		} else {
			logger.Info("summary written", zap.String("file", path))
		}
		if path, err := utils.WriteErrorLog(entries, mainConfig.OutputDir, summary.EndTime); err != nil {
			logger.Error("failed to write error log", zap.Error(err))
		} else if path != "" {
			fmt.Fprintf(out, "\nErrors have been logged to %s\n", path)
		}
	}

	if opts.pruneArchives > 0 && !opts.dryRun {
		pruneArchives(opts.pruneArchives)
	}

	if groupErr != nil {
		return summary, groupErr
	}
	if summary.FailedFiles > 0 {
		return summary, fmt.Errorf("%d of %d files failed", summary.FailedFiles, len(jobs))
	}
	return summary, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// discover lists the input files selected by opts.
func discover(files *utils.FileManager, opts processFlags) ([]string, error) {
	if opts.file != "" {
		if !utils.FileExists(opts.file) {
			return nil, fmt.Errorf("file not found: %s", opts.file)
		}
		return []string{opts.file}, nil
	}
	if opts.recursive {
		return files.DiscoverInputFilesRecursive(inputExtensions...)
	}

	all, err := files.DiscoverInputFiles("")
	if err != nil {
		return nil, err
	}
	var inputs []string
	for _, path := range all {
		ext := filepath.Ext(path)
		for _, want := range inputExtensions {
			if ext == want {
				inputs = append(inputs, path)
				break
			}
		}
	}
	return inputs, nil
}

// convertAll runs the converters with bounded concurrency. When
// continue_on_error is off the first failure cancels the files not yet
// started and is returned.
func convertAll(ctx context.Context, jobs []processJob, dryRun bool) ([]converter.Result, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(mainConfig.MaxConcurrency)

	results := make(chan converter.Result, len(jobs))
	sugar := logger.Sugar()

	for _, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		job := job // per-iteration copy; go.mod targets Go 1.21 loop semantics
		g.Go(func() error {
			conv := converter.New(job.path, job.profile, mainConfig,
				converter.WithLogger(sugar),
				converter.WithDryRun(dryRun),
			)
			result := conv.Run(gctx)
			results <- result

			if !result.Success {
				sugar.Errorf("Failed %s: %v", filepath.Base(job.path), result.Error)
				if !mainConfig.ContinueOnError {
					return fmt.Errorf("%s: %w", filepath.Base(job.path), result.Error)
				}
			}
			return nil
		})
	}

	err := g.Wait()
	close(results)

	collected := make([]converter.Result, 0, len(jobs))
	for result := range results {
		collected = append(collected, result)
	}
	sort.Slice(collected, func(i, j int) bool { return collected[i].FilePath < collected[j].FilePath })

	return collected, err
}

// errorLogEntry describes a failed result for the error log.
func errorLogEntry(result converter.Result, now time.Time) utils.ErrorLogEntry {
	entry := utils.ErrorLogEntry{
		Timestamp:    now,
		FileName:     filepath.Base(result.FilePath),
		ErrorType:    errorType(result.Error),
		ErrorMessage: result.Error.Error(),
	}

	var (
		rowErr    *types.RowError
		dateErr   *types.InvalidDateError
		schemaErr *types.SchemaViolationError
		columnErr *types.MissingColumnError
	)
	if errors.As(result.Error, &rowErr) {
		entry.RowNumber = rowErr.Row
	}
	switch {
	case errors.As(result.Error, &dateErr):
		entry.RowNumber = dateErr.Row
		entry.FieldName = dateErr.Column
		entry.FieldValue = dateErr.Value
	case errors.As(result.Error, &schemaErr):
		entry.FieldName = schemaErr.Field
		entry.FieldValue = schemaErr.Value
	case errors.As(result.Error, &columnErr):
		entry.FieldName = columnErr.Column
	}

	return entry
}

// errorType names the kind of a conversion error.
func errorType(err error) string {
	var (
		ibanErr    *types.InvalidIBANError
		countryErr *types.UnsupportedOriginatorCountryError
		amountErr  *types.InvalidAmountError
		schemaErr  *types.SchemaViolationError
		columnErr  *types.MissingColumnError
		dateErr    *types.InvalidDateError
	)
	switch {
	case errors.As(err, &ibanErr):
		return "InvalidIBAN"
	case errors.As(err, &countryErr):
		return "UnsupportedOriginatorCountry"
	case errors.As(err, &amountErr):
		return "InvalidAmount"
	case errors.As(err, &schemaErr):
		return "SchemaViolation"
	case errors.As(err, &columnErr):
		return "MissingColumn"
	case errors.As(err, &dateErr):
		return "InvalidDate"
	case errors.Is(err, context.Canceled):
		return "Cancelled"
	case types.IsUserError(err):
		return "ConversionError"
	}
	return "InternalError"
}

// pruneArchives deletes archived files older than maxAge.
func pruneArchives(maxAge time.Duration) {
	for _, dir := range []string{mainConfig.InputArchiveDir, mainConfig.OutputArchiveDir} {
		removed, err := utils.CleanOldArchives(dir, maxAge, time.Now())
		if err != nil {
			logger.Warn("failed to prune archive", zap.String("dir", dir), zap.Error(err))
			continue
		}
		logger.Info("archive pruned", zap.String("dir", dir), zap.Int("removed", removed))
	}
}

// printSummary prints the outcome of a run.
func printSummary(out io.Writer, summary *utils.ProcessingSummary, dryRun bool) {
	for _, file := range summary.ProcessedFiles {
		target := file.OutputFile
		if dryRun {
			target = "(dry run)"
		}
		fmt.Fprintf(out, "  ✓ %s -> %s\n", filepath.Base(file.InputFile), target)
	}
	for _, file := range summary.FailedFilesList {
		fmt.Fprintf(out, "  ✗ %s: %s\n", filepath.Base(file.InputFile), file.ErrorMessage)
	}

	fmt.Fprintln(out, "\n=== Processing Complete ===")
	fmt.Fprintf(out, "Total files:     %d\n", summary.TotalFiles)
	fmt.Fprintf(out, "Successful:      %d\n", summary.SuccessfulFiles)
	fmt.Fprintf(out, "Failed:          %d\n", summary.FailedFiles)
	fmt.Fprintf(out, "Skipped:         %d\n", summary.SkippedFiles)
	fmt.Fprintf(out, "Records:         %d\n", summary.TotalRecords)
	fmt.Fprintf(out, "Time elapsed:    %s\n", summary.EndTime.Sub(summary.StartTime).Round(time.Millisecond))
}
