// =============================================================================
// sepacetamol - SEPA Command
// =============================================================================
//
// This file defines the 'sepa' command, which turns one payment workbook into
// a pain.001.001.03 credit transfer file.
//
// COMMAND USAGE:
//   sepacetamol sepa <workbook> [flags]
//
// FLAGS:
//   --dry-run         : Print the payment list instead of writing the file
//   --output          : Output path (default: <output_dir>/<workbook>.xml)
//   --batch-booking   : true, false or single (default: sepa.batch_booking)
//   --originator-bic  : BIC of the originator when it cannot be derived
//   --delimiter       : Delimiter of CSV workbooks
//   --encoding        : Encoding of CSV workbooks
//
// WORKBOOK LAYOUT:
//   Row 2:  originator name | originator IBAN
//   Row 4+: name | IBAN | amount | purpose | reference
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/sepacetamol/internal/config"
	"github.com/ginjaninja78/sepacetamol/internal/converter"
	"github.com/ginjaninja78/sepacetamol/internal/sepa"
	"github.com/ginjaninja78/sepacetamol/internal/sheet"
	"github.com/ginjaninja78/sepacetamol/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// sepaFlags holds the flags of the sepa command.
type sepaFlags struct {
	dryRun        bool
	output        string
	batchBooking  string
	originatorBIC string
	csv           config.CSVSettings
}

var sepaOpts sepaFlags

// =============================================================================
// SEPA COMMAND DEFINITION
// =============================================================================

var sepaCmd = &cobra.Command{
	Use:   "sepa <workbook>",
	Short: "Convert a payment workbook into a SEPA credit transfer file",
	Long: `The sepa command reads a payment workbook (xlsx or semicolon separated CSV)
and writes a pain.001.001.03 credit transfer file for the bank.

Every IBAN is validated and every amount must be positive with at most two
decimals. The BIC of German accounts is derived from the bank code. The
first bad row aborts the conversion; nothing is written in that case.

Use --dry-run to review the payments and the grand total first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSEPA(cmd.OutOrStdout(), args[0], sepaOpts)
	},
}

func init() {
	rootCmd.AddCommand(sepaCmd)

	flags := sepaCmd.Flags()
	flags.BoolVar(&sepaOpts.dryRun, "dry-run", false, "Print the payment list instead of writing the file")
	flags.StringVarP(&sepaOpts.output, "output", "o", "", "Output path (default: <output_dir>/<workbook>.xml)")
	flags.StringVar(&sepaOpts.batchBooking, "batch-booking", "", "Batch booking: true, false or single")
	flags.StringVar(&sepaOpts.originatorBIC, "originator-bic", "", "BIC of the originator account")
	flags.StringVar(&sepaOpts.csv.Delimiter, "delimiter", ";", "Delimiter of CSV workbooks")
	flags.StringVar(&sepaOpts.csv.Encoding, "encoding", "UTF-8", "Encoding of CSV workbooks")
}

// =============================================================================
// MAIN FUNCTION
// =============================================================================

// runSEPA converts path and either prints the preview or writes the XML.
func runSEPA(out io.Writer, path string, opts sepaFlags) error {
	settings := mainConfig.SEPA
	if opts.batchBooking != "" {
		settings.BatchBooking = opts.batchBooking
	}
	if opts.originatorBIC != "" {
		settings.OriginatorBIC = opts.originatorBIC
	}

	s, err := sheet.ReadFile(path, opts.csv)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}

	output, err := converter.ConvertSheet(s, converter.Job{
		Kind:   config.KindSEPA,
		Source: filepath.Base(path),
		SEPA:   settings,
	})
	if err != nil {
		return err
	}

	if opts.dryRun {
		return printPreview(out, output.Filename, output.Preview)
	}

	target := opts.output
	if target == "" {
		target = filepath.Join(mainConfig.OutputDir, output.Filename)
	}
	written, err := writeOutput(target, output.Content)
	if err != nil {
		return err
	}

	logger.Info("sepa file written",
		zap.String("input", path),
		zap.String("output", written),
		zap.Int("transactions", output.Records),
	)
	fmt.Fprintf(out, "%s -> %s (%d transactions, %s EUR)\n",
		filepath.Base(path), written, output.Records, output.Preview.Total.StringFixed(2))
	return nil
}

// writeOutput writes content to target, creating its directory.
func writeOutput(target string, content []byte) (string, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	written, err := utils.WriteFileAtomic(target, content)
	if err != nil {
		return "", fmt.Errorf("failed to write output: %w", err)
	}
	return written, nil
}

// printPreview writes the payment list as an aligned table.
func printPreview(out io.Writer, filename string, imp *sepa.Import) error {
	fmt.Fprintf(out, "Originator: %s\n", imp.OriginatorName)
	fmt.Fprintf(out, "IBAN:       %s\n", imp.OriginatorIBAN)
	fmt.Fprintf(out, "BIC:        %s\n", imp.OriginatorBIC)
	fmt.Fprintf(out, "Target:     %s\n\n", filename)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tIBAN\tBIC\tAMOUNT\tPURPOSE\tREFERENCE")
	for _, p := range imp.Payments {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.Name, p.IBAN, p.BIC, p.Amount.StringFixed(2), p.Purpose, p.Reference)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(out, "\nGrand total: %s EUR (%d transactions)\n", imp.Total.StringFixed(2), len(imp.Payments))
	return err
}
