// =============================================================================
// sepacetamol - Configuration Module
// =============================================================================
//
// This module loads the main application configuration and the conversion
// profiles.
//
// CONFIGURATION FILES:
//   1. Main Config (config.yaml): server, logging, directories, DATEV and
//      SEPA defaults
//   2. Profiles (configs/*.yaml): per source system rules. A profile says
//      which input files it handles, whether they become SEPA transfers or
//      DATEV batches, how CSV input is read and which columns are rewritten
//      before mapping
//
// Values from the files can be overridden with SEPACETAMOL_* environment
// variables and command line flags (see ApplyOverrides).
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned by the process command.
	// Default: "./input"
	InputDir string `yaml:"input_dir"`

	// OutputDir receives the generated XML and CSV files.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// InputArchiveDir receives inputs after a successful conversion.
	// Default: "./input_archive"
	InputArchiveDir string `yaml:"input_archive_dir"`

	// OutputArchiveDir keeps a copy of every generated file.
	// Default: "./output_archive"
	OutputArchiveDir string `yaml:"output_archive_dir"`

	// ConfigsDir holds the profile files.
	// Default: "./configs"
	ConfigsDir string `yaml:"configs_dir"`

	// BankRegistryFile is an optional Bundesbank bank code file (CSV export
	// or fixed-width text) that extends the bundled registry.
	BankRegistryFile string `yaml:"bank_registry_file"`

	// =========================================================================
	// SERVICE SETTINGS
	// =========================================================================

	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`

	// =========================================================================
	// FORMAT DEFAULTS
	// =========================================================================

	DATEV DATEVConfig `yaml:"datev"`
	SEPA  SEPAConfig  `yaml:"sepa"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// UUIDFormat names files written by the process command.
	// Placeholders:
	//   {uuid}      - A random UUID
	//   {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
	//   {profile}   - Profile code
	//   {name}      - Suggested file name without extension
	// Default: "{name}_{timestamp}"
	UUIDFormat string `yaml:"uuid_format"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency bounds the number of files converted at once.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency"`

	// ContinueOnError keeps processing the remaining files after a failure.
	// Default: true
	ContinueOnError bool `yaml:"continue_on_error"`
}

// ServerConfig configures the HTTP adapter.
type ServerConfig struct {
	// Addr is the listen address.
	// Default: ":8080"
	Addr string `yaml:"addr"`

	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxUploadBytes limits multipart uploads.
	// Default: 10 MiB
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "console".
	// Default: "json"
	Format string `yaml:"format"`

	// File additionally writes logs to this path when set.
	File string `yaml:"file"`
}

// DATEVConfig carries the DATEV numbers of the client.
type DATEVConfig struct {
	// ConsultantNumber is the Beraternummer (1001 - 9999999).
	ConsultantNumber int `yaml:"consultant_number"`

	// ClientNumber is the Mandantennummer (1 - 99999).
	ClientNumber int `yaml:"client_number"`
}

// SEPAConfig carries SEPA transfer defaults.
type SEPAConfig struct {
	// BatchBooking is "true", "false" or "single".
	// Default: "true"
	BatchBooking string `yaml:"batch_booking"`

	// Currency must be EUR.
	// Default: "EUR"
	Currency string `yaml:"currency"`

	// OriginatorBIC replaces the BIC derived from the originator IBAN.
	OriginatorBIC string `yaml:"originator_bic"`
}

// =============================================================================
// PROFILE STRUCTURE
// =============================================================================

// Profile kinds.
const (
	KindSEPA  = "sepa"
	KindDATEV = "datev"
)

// Profile describes how the files of one source system are converted.
type Profile struct {
	// Name is the human-readable name used in logs.
	Name string `yaml:"name"`

	// Code is a short identifier used as map key and in output names.
	Code string `yaml:"code"`

	// Kind is "sepa" for payment workbooks or "datev" for Personio exports.
	Kind string `yaml:"kind"`

	// FileMatchingPatterns are glob patterns matched against input file
	// names. Examples:
	//   - "Gehalt_*.xlsx"
	//   - "personio_*.csv"
	FileMatchingPatterns []string `yaml:"file_matching_patterns"`

	// CSVSettings is used when an input is a CSV file.
	CSVSettings CSVSettings `yaml:"csv_settings"`

	// TransformationRules rewrite named columns before mapping. They apply to
	// DATEV profiles, whose input has a header row.
	TransformationRules []TransformationRule `yaml:"transformation_rules"`

	// DATEV and SEPA override the main configuration when set.
	DATEV DATEVConfig `yaml:"datev"`
	SEPA  SEPAConfig  `yaml:"sepa"`
}

// =============================================================================
// CSV SETTINGS STRUCTURE
// =============================================================================

// CSVSettings contains settings for reading CSV input.
type CSVSettings struct {
	// Delimiter separates fields. Accepts a character or a name such as
	// "tab", "pipe" or "semicolon".
	// Default: ";"
	Delimiter string `yaml:"delimiter"`

	// Encoding of the file: "UTF-8", "Windows-1252", "ISO-8859-1" or
	// "ISO-8859-15".
	// Default: "UTF-8"
	Encoding string `yaml:"encoding"`

	// SkipRows drops leading rows (metadata above the header).
	SkipRows int `yaml:"skip_rows"`

	// Comment marks lines to ignore when set.
	Comment string `yaml:"comment"`
}

// =============================================================================
// TRANSFORMATION RULE STRUCTURE
// =============================================================================

// TransformationRule defines the actions applied to one column.
type TransformationRule struct {
	// Field is the exact column header.
	Field string `yaml:"field"`

	// Actions are applied in order.
	Actions []TransformationAction `yaml:"actions"`
}

// TransformationAction defines a single transformation action.
type TransformationAction struct {
	// Type is one of:
	//   - "trim", "uppercase", "lowercase"
	//   - "prepend_string", "append_string" : Value is the text
	//   - "pad_zeros_to_length"             : Value is the length
	//   - "replace"                         : Find is replaced by Value
	//   - "regex_replace"                   : Find is a regular expression
	//   - "lookup"                          : LookupTable maps values
	Type string `yaml:"type"`

	Value       string            `yaml:"value"`
	Find        string            `yaml:"find,omitempty"`
	LookupTable map[string]string `yaml:"lookup_table,omitempty"`
}

// TransformationTypes lists the supported action types.
var TransformationTypes = []string{
	"trim", "uppercase", "lowercase", "prepend_string", "append_string",
	"pad_zeros_to_length", "replace", "regex_replace", "lookup",
}

// =============================================================================
// MAIN CONFIGURATION LOADING
// =============================================================================

// Default returns the main configuration used when no file is present.
func Default() *MainConfig {
	config := &MainConfig{ContinueOnError: true}
	applyMainConfigDefaults(config)
	return config
}

// LoadMainConfig loads the main configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the main configuration file.
//
// RETURNS:
//   - The configuration with defaults applied.
//   - An error if the file cannot be read, parsed or fails validation.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := ParseMainConfig(data)
	if err != nil {
		return nil, err
	}
	return config, nil
}

// ParseMainConfig parses YAML content. Absent keys keep their defaults.
func ParseMainConfig(data []byte) (*MainConfig, error) {
	config := MainConfig{ContinueOnError: true}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyMainConfigDefaults(&config)

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadOrDefault loads configPath, falling back to Default when the file does
// not exist and was not requested explicitly.
func LoadOrDefault(configPath string, explicit bool) (*MainConfig, error) {
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) && !explicit {
		return Default(), nil
	}
	return LoadMainConfig(configPath)
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.InputArchiveDir == "" {
		config.InputArchiveDir = "./input_archive"
	}
	if config.OutputArchiveDir == "" {
		config.OutputArchiveDir = "./output_archive"
	}
	if config.ConfigsDir == "" {
		config.ConfigsDir = "./configs"
	}
	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 30 * time.Second
	}
	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = 60 * time.Second
	}
	if config.Server.MaxUploadBytes == 0 {
		config.Server.MaxUploadBytes = 10 << 20
	}
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "json"
	}
	applySEPADefaults(&config.SEPA)
	if config.UUIDFormat == "" {
		config.UUIDFormat = "{name}_{timestamp}"
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 4
	}
}

func applySEPADefaults(sepa *SEPAConfig) {
	if sepa.BatchBooking == "" {
		sepa.BatchBooking = "true"
	}
	if sepa.Currency == "" {
		sepa.Currency = "EUR"
	}
}

// Validate checks value ranges. It does not touch the file system.
func Validate(config *MainConfig) error {
	switch config.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", config.Logging.Level)
	}
	switch config.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", config.Logging.Format)
	}
	if config.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be at least 1, got %d", config.MaxConcurrency)
	}
	if config.Server.MaxUploadBytes < 0 {
		return fmt.Errorf("server.max_upload_bytes must not be negative")
	}
	if err := validateDATEV("datev", config.DATEV); err != nil {
		return err
	}
	return validateSEPA("sepa", config.SEPA)
}

func validateDATEV(prefix string, datev DATEVConfig) error {
	if datev.ConsultantNumber != 0 && (datev.ConsultantNumber < 1001 || datev.ConsultantNumber > 9999999) {
		return fmt.Errorf("%s.consultant_number must be between 1001 and 9999999, got %d", prefix, datev.ConsultantNumber)
	}
	if datev.ClientNumber != 0 && (datev.ClientNumber < 1 || datev.ClientNumber > 99999) {
		return fmt.Errorf("%s.client_number must be between 1 and 99999, got %d", prefix, datev.ClientNumber)
	}
	return nil
}

func validateSEPA(prefix string, sepa SEPAConfig) error {
	switch strings.ToLower(sepa.BatchBooking) {
	case "", "true", "false", "single":
	default:
		return fmt.Errorf("%s.batch_booking must be true, false or single, got %q", prefix, sepa.BatchBooking)
	}
	if sepa.Currency != "" && sepa.Currency != "EUR" {
		return fmt.Errorf("%s.currency must be EUR, got %q", prefix, sepa.Currency)
	}
	return nil
}

// EnsureDirectories creates the directories used by the process command.
func (c *MainConfig) EnsureDirectories() error {
	dirs := []string{
		c.InputDir,
		c.OutputDir,
		c.InputArchiveDir,
		c.OutputArchiveDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// =============================================================================
// OVERRIDES
// =============================================================================

// ApplyOverrides copies every key that v has set (through SEPACETAMOL_*
// environment variables or bound flags) onto config and validates the
// result. Keys use the YAML names joined by dots, e.g. "server.addr".
func ApplyOverrides(config *MainConfig, v *viper.Viper) error {
	strs := map[string]*string{
		"input_dir":           &config.InputDir,
		"output_dir":          &config.OutputDir,
		"input_archive_dir":   &config.InputArchiveDir,
		"output_archive_dir":  &config.OutputArchiveDir,
		"configs_dir":         &config.ConfigsDir,
		"bank_registry_file":  &config.BankRegistryFile,
		"uuid_format":         &config.UUIDFormat,
		"server.addr":         &config.Server.Addr,
		"logging.level":       &config.Logging.Level,
		"logging.format":      &config.Logging.Format,
		"logging.file":        &config.Logging.File,
		"sepa.batch_booking":  &config.SEPA.BatchBooking,
		"sepa.originator_bic": &config.SEPA.OriginatorBIC,
	}
	for key, target := range strs {
		if v.IsSet(key) {
			*target = v.GetString(key)
		}
	}

	ints := map[string]*int{
		"max_concurrency":         &config.MaxConcurrency,
		"datev.consultant_number": &config.DATEV.ConsultantNumber,
		"datev.client_number":     &config.DATEV.ClientNumber,
	}
	for key, target := range ints {
		if v.IsSet(key) {
			*target = v.GetInt(key)
		}
	}

	if v.IsSet("continue_on_error") {
		config.ContinueOnError = v.GetBool("continue_on_error")
	}
	if v.IsSet("server.max_upload_bytes") {
		config.Server.MaxUploadBytes = v.GetInt64("server.max_upload_bytes")
	}

	return Validate(config)
}

// =============================================================================
// PROFILE LOADING
// =============================================================================

// LoadProfiles loads all profiles from a directory.
//
// RETURNS:
//   - Profiles keyed by code (file name when no code is given).
//   - An error if any file cannot be parsed or is invalid.
func LoadProfiles(configsDir string) (map[string]*Profile, error) {
	profiles := make(map[string]*Profile)

	files, err := filepath.Glob(filepath.Join(configsDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list config files: %w", err)
	}

	ymlFiles, err := filepath.Glob(filepath.Join(configsDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list config files: %w", err)
	}
	files = append(files, ymlFiles...)

	for _, file := range files {
		profile, err := loadProfile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}

		key := profile.Code
		if key == "" {
			key = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
			profile.Code = key
		}
		if _, dup := profiles[key]; dup {
			return nil, fmt.Errorf("duplicate profile code %q in %s", key, file)
		}

		profiles[key] = profile
	}

	return profiles, nil
}

func loadProfile(filePath string) (*Profile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile parses, defaults and validates one profile.
func ParseProfile(data []byte) (*Profile, error) {
	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse file: %w", err)
	}

	applyProfileDefaults(&profile)

	if err := validateProfile(&profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func applyProfileDefaults(profile *Profile) {
	profile.Kind = strings.ToLower(strings.TrimSpace(profile.Kind))

	if profile.CSVSettings.Delimiter == "" {
		profile.CSVSettings.Delimiter = ";"
	}
	if profile.CSVSettings.Encoding == "" {
		profile.CSVSettings.Encoding = "UTF-8"
	}
}

func validateProfile(profile *Profile) error {
	if profile.Kind != KindSEPA && profile.Kind != KindDATEV {
		return fmt.Errorf("kind must be %q or %q, got %q", KindSEPA, KindDATEV, profile.Kind)
	}
	if len(profile.FileMatchingPatterns) == 0 {
		return fmt.Errorf("file_matching_patterns must not be empty")
	}
	for _, pattern := range profile.FileMatchingPatterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("invalid file pattern %q: %w", pattern, err)
		}
	}
	for _, rule := range profile.TransformationRules {
		for _, action := range rule.Actions {
			if !isTransformationType(action.Type) {
				return fmt.Errorf("field %s: unknown transformation type %q", rule.Field, action.Type)
			}
		}
	}
	if err := validateDATEV("datev", profile.DATEV); err != nil {
		return err
	}
	return validateSEPA("sepa", profile.SEPA)
}

func isTransformationType(t string) bool {
	for _, known := range TransformationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// MatchProfile returns the profile whose pattern matches the base name of
// path. Profiles are tried in code order so the result is stable.
func MatchProfile(path string, profiles map[string]*Profile) *Profile {
	fileName := filepath.Base(path)

	codes := make([]string, 0, len(profiles))
	for code := range profiles {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		profile := profiles[code]
		for _, pattern := range profile.FileMatchingPatterns {
			matched, err := filepath.Match(pattern, fileName)
			if err != nil {
				continue
			}
			if matched {
				return profile
			}
		}
	}

	return nil
}

// =============================================================================
// EFFECTIVE SETTINGS
// =============================================================================

// DATEVFor returns the DATEV numbers for profile, falling back to the main
// configuration per field.
func (c *MainConfig) DATEVFor(profile *Profile) DATEVConfig {
	out := c.DATEV
	if profile == nil {
		return out
	}
	if profile.DATEV.ConsultantNumber != 0 {
		out.ConsultantNumber = profile.DATEV.ConsultantNumber
	}
	if profile.DATEV.ClientNumber != 0 {
		out.ClientNumber = profile.DATEV.ClientNumber
	}
	return out
}

// SEPAFor returns the SEPA settings for profile, falling back to the main
// configuration per field.
func (c *MainConfig) SEPAFor(profile *Profile) SEPAConfig {
	out := c.SEPA
	if profile == nil {
		return out
	}
	if profile.SEPA.BatchBooking != "" {
		out.BatchBooking = profile.SEPA.BatchBooking
	}
	if profile.SEPA.OriginatorBIC != "" {
		out.OriginatorBIC = profile.SEPA.OriginatorBIC
	}
	return out
}

// NewViper returns a viper instance reading SEPACETAMOL_* environment
// variables for the dotted keys used by ApplyOverrides.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("SEPACETAMOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}
