// =============================================================================
// sepacetamol - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. All other commands
// are attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (sepacetamol)
//   ├── sepaCmd    (sepacetamol sepa)     payment workbook -> pain.001 XML
//   ├── datevCmd   (sepacetamol datev)    Personio export  -> DATEV EXTF CSV
//   ├── processCmd (sepacetamol process)  batch conversion of the input directory
//   ├── serveCmd   (sepacetamol serve)    HTTP API
//   └── versionCmd (sepacetamol version)
//
// CONFIGURATION:
//   Before any command runs, the root command
//   1. loads config.yaml (defaults apply when the file is absent)
//   2. applies SEPACETAMOL_* environment variables and global flags via viper
//   3. builds the zap logger
//   4. installs the bank registry overlay, if one is configured
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ginjaninja78/sepacetamol/internal/config"
	"github.com/ginjaninja78/sepacetamol/internal/iban"
	"github.com/ginjaninja78/sepacetamol/internal/observability"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose switches the logger to debug level with console output.
var verbose bool

// v resolves overrides from bound flags and SEPACETAMOL_* variables.
var v = config.NewViper()

// mainConfig and logger are set up by setup before a command runs.
var (
	mainConfig *config.MainConfig
	logger     *zap.Logger
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "sepacetamol",
	Short: "sepacetamol - payroll spreadsheets to SEPA transfers and DATEV bookings",
	Long: `sepacetamol converts payroll and payment spreadsheets into the two files
German payroll accounting hands on:

  - SEPA credit transfers (pain.001.001.03 XML) for the bank
  - DATEV booking batches (EXTF CSV) for the tax consultant

Example Usage:
  sepacetamol sepa Gehalt_Maerz.xlsx --dry-run       # Preview a payment list
  sepacetamol sepa Gehalt_Maerz.xlsx                 # Write Gehalt_Maerz.xml
  sepacetamol datev personio.xlsx --consultant-number 1001 --client-number 42
  sepacetamol process                                # Convert the input directory
  sepacetamol serve                                  # Start the HTTP API`,

	SilenceErrors: true,
	SilenceUsage:  true,

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	// Assigned here rather than in the literal: setup reads rootCmd, which
	// would otherwise form an initialization cycle.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return setup()
	}

	flags := rootCmd.PersistentFlags()

	flags.StringVar(&cfgFile, "config", "config.yaml", "Path to the main configuration file")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging on the console")

	// Flags below override config.yaml. Unset flags leave it untouched.
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-format", "", "Log format (json, console)")
	flags.String("input-dir", "", "Directory scanned by process")
	flags.String("output-dir", "", "Directory output files are written to")
	flags.String("configs-dir", "", "Directory holding conversion profiles")
	flags.String("bank-registry", "", "Bundesbank bank code file (CSV or fixed-width) overlaid on the bundled registry")

	bindFlags(v, flags, map[string]string{
		"logging.level":      "log-level",
		"logging.format":     "log-format",
		"input_dir":          "input-dir",
		"output_dir":         "output-dir",
		"configs_dir":        "configs-dir",
		"bank_registry_file": "bank-registry",
	})
}

// bindFlags binds configuration keys to flags. Binding only fails for an
// unknown flag, which is a programming error.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

// =============================================================================
// SETUP
// =============================================================================

// setup loads the configuration and builds the shared logger.
func setup() error {
	explicit := rootCmd.PersistentFlags().Changed("config")

	cfg, err := config.LoadOrDefault(cfgFile, explicit)
	if err != nil {
		return fmt.Errorf("failed to load main config: %w", err)
	}
	if err := config.ApplyOverrides(cfg, v); err != nil {
		return fmt.Errorf("invalid configuration overrides: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "console"
	}

	log, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}

	if err := installBankRegistry(cfg.BankRegistryFile, log); err != nil {
		return err
	}

	mainConfig = cfg
	logger = log
	return nil
}

// installBankRegistry overlays the bundled bank codes with path.
func installBankRegistry(path string, log *zap.Logger) error {
	if path == "" {
		return nil
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open bank registry: %w", err)
	}
	defer file.Close()

	overlay, err := iban.ParseRegistry(file)
	if err != nil {
		return fmt.Errorf("failed to read bank registry %s: %w", path, err)
	}

	iban.Install(iban.Bundled().With(overlay))
	log.Info("bank registry installed", zap.String("file", path), zap.Int("bank_codes", overlay.Len()))
	return nil
}
