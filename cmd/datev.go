// =============================================================================
// sepacetamol - DATEV Command
// =============================================================================
//
// This file defines the 'datev' command, which turns a Personio payroll
// export into a DATEV booking batch (EXTF Buchungsstapel).
//
// COMMAND USAGE:
//   sepacetamol datev <export> [flags]
//
// FLAGS:
//   --consultant-number : DATEV Beraternummer (default: datev.consultant_number)
//   --client-number     : DATEV Mandantennummer (default: datev.client_number)
//   --output            : Output path (default: <output_dir>/EXTF_Personio-YYYY-MM.csv)
//   --delimiter         : Delimiter of CSV exports
//   --encoding          : Encoding of CSV exports
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/sepacetamol/internal/config"
	"github.com/ginjaninja78/sepacetamol/internal/converter"
	"github.com/ginjaninja78/sepacetamol/internal/personio"
	"github.com/ginjaninja78/sepacetamol/internal/sheet"
)

type datevFlags struct {
	consultantNumber int
	clientNumber     int
	output           string
	csv              config.CSVSettings
}

var datevOpts datevFlags

var datevCmd = &cobra.Command{
	Use:   "datev <export>",
	Short: "Convert a Personio payroll export into a DATEV booking batch",
	Long: `The datev command reads a Personio payroll export (xlsx or CSV) and writes
an EXTF booking batch that DATEV Rechnungswesen imports directly.

The file is encoded in Windows-1252 with CRLF line endings. Its period is
the month of the first booking, its name EXTF_Personio-YYYY-MM.csv.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDATEV(cmd.OutOrStdout(), args[0], datevOpts)
	},
}

func init() {
	rootCmd.AddCommand(datevCmd)

	flags := datevCmd.Flags()
	flags.IntVar(&datevOpts.consultantNumber, "consultant-number", 0, "DATEV consultant number (Beraternummer)")
	flags.IntVar(&datevOpts.clientNumber, "client-number", 0, "DATEV client number (Mandantennummer)")
	flags.StringVarP(&datevOpts.output, "output", "o", "", "Output path (default: <output_dir>/EXTF_Personio-YYYY-MM.csv)")
	flags.StringVar(&datevOpts.csv.Delimiter, "delimiter", ";", "Delimiter of CSV exports")
	flags.StringVar(&datevOpts.csv.Encoding, "encoding", "UTF-8", "Encoding of CSV exports")
}

// runDATEV converts path and writes the EXTF file.
func runDATEV(out io.Writer, path string, opts datevFlags) error {
	numbers := mainConfig.DATEV
	if opts.consultantNumber != 0 {
		numbers.ConsultantNumber = opts.consultantNumber
	}
	if opts.clientNumber != 0 {
		numbers.ClientNumber = opts.clientNumber
	}

	// Bad numbers are reported before the export is read.
	settings := personio.Settings{ConsultantNumber: numbers.ConsultantNumber, ClientNumber: numbers.ClientNumber}
	if err := settings.Validate(); err != nil {
		return err
	}

	s, err := sheet.ReadFile(path, opts.csv)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}

	output, err := converter.ConvertSheet(s, converter.Job{
		Kind:   config.KindDATEV,
		Source: filepath.Base(path),
		DATEV:  numbers,
	})
	if err != nil {
		return err
	}

	target := opts.output
	if target == "" {
		target = filepath.Join(mainConfig.OutputDir, output.Filename)
	}
	written, err := writeOutput(target, output.Content)
	if err != nil {
		return err
	}

	logger.Info("datev file written",
		zap.String("input", path),
		zap.String("output", written),
		zap.Int("bookings", output.Records),
	)
	fmt.Fprintf(out, "%s -> %s (%d bookings)\n", filepath.Base(path), written, output.Records)
	return nil
}
