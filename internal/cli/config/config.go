package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/rawbatch/rawbatch/pkg/converter"
)

const (
	EnvPrefix         = "RAWBATCH"
	DefaultConfigName = "rawbatch"
)

// LoadAndValidate loads configuration from all sources (defaults, file,
// profile, env, flags), validates the merged configuration, derives absolute
// paths, and sets up the logger. Returns the populated Options struct or an
// error.
func LoadAndValidate(cfgFile, profileName, appVersion string, verbose bool, flags *pflag.FlagSet) (converter.Options, *slog.Logger, error) {
	var opts converter.Options
	v := viper.New()

	// Temporary basic logger for errors raised before the level is known.
	tempLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	setDefaults(v)

	// --- Load Config File ---
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			tempLogger.Error("Failed to get user home directory", slog.Any("error", err))
			return opts, tempLogger, fmt.Errorf("failed to get user home directory: %w", err)
		}
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(home, ".config", DefaultConfigName))
		v.AddConfigPath(filepath.Join(home, "."+DefaultConfigName))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && cfgFile == "" {
			tempLogger.Debug("No configuration file found, using defaults/env/flags.")
		} else {
			configFileUsed := cfgFile
			if configFileUsed == "" {
				configFileUsed = fmt.Sprintf("searched locations for %s.yaml", DefaultConfigName)
			}
			tempLogger.Error("Error reading configuration file", slog.String("path", configFileUsed), slog.Any("error", err))
			return opts, tempLogger, fmt.Errorf("error reading config file '%s': %w", configFileUsed, err)
		}
	} else {
		opts.ConfigFilePath = v.ConfigFileUsed()
		tempLogger.Debug("Using configuration file", slog.String("path", opts.ConfigFilePath))
	}

	// --- Apply Profile ---
	// Presets like "fast" and "quality" live under profiles.<name> in the
	// config file and merge over the base settings.
	opts.ProfileName = profileName
	if profileName != "" {
		profileKey := "profiles." + profileName
		if !v.IsSet(profileKey) {
			configPath := v.ConfigFileUsed()
			if configPath == "" {
				configPath = "(no config file found)"
			}
			err := fmt.Errorf("profile '%s' not found in config file '%s'", profileName, configPath)
			tempLogger.Error(err.Error())
			return opts, tempLogger, err
		}
		profileSettings := v.Sub(profileKey)
		if profileSettings == nil {
			err := fmt.Errorf("failed to load profile '%s' settings from config file '%s'", profileName, v.ConfigFileUsed())
			tempLogger.Error(err.Error())
			return opts, tempLogger, err
		}
		if err := v.MergeConfigMap(profileSettings.AllSettings()); err != nil {
			tempLogger.Error("Error merging profile", slog.String("profile", profileName), slog.Any("error", err))
			return opts, tempLogger, fmt.Errorf("error merging profile '%s': %w", profileName, err)
		}
		tempLogger.Debug("Applied configuration profile", slog.String("profile", profileName))
	}

	// --- Bind Environment Variables ---
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// --- Bind Flags (Highest Priority) ---
	// Dashed flag names bind onto the camelCase/nested config keys so that
	// Unmarshal sees one canonical key per setting.
	flagKeys := map[string]string{
		"inputPath":                 "input",
		"outputPath":                "output",
		"quality":                   "quality",
		"extensions":                "extensions",
		"concurrency":               "concurrency",
		"onError":                   "on-error",
		"outputFormat":              "output-format",
		"verbose":                   "verbose",
		"skipExisting":              "skip-existing",
		"profileDir":                "profile-dir",
		"brand":                     "brand",
		"model":                     "model",
		"scene":                     "scene",
		"strictProfile":             "strict-profile",
		"dcrawPath":                 "dcraw-path",
		"decode.useCameraWB":        "camera-wb",
		"decode.useAutoWB":          "auto-wb",
		"decode.brightness":         "brightness",
		"decode.halfSize":           "half-size",
		"decode.preserveHighlights": "preserve-highlights",
		"decode.fourColorRGB":       "four-color",
	}
	for key, flagName := range flagKeys {
		flag := flags.Lookup(flagName)
		if flag == nil {
			tempLogger.Debug("Flag lookup failed during binding", slog.String("flag", flagName))
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			tempLogger.Error("Error binding flag", slog.String("flag", flagName), slog.Any("error", err))
			return opts, tempLogger, fmt.Errorf("error binding flag '--%s': %w", flagName, err)
		}
	}

	opts.AppVersion = appVersion

	if err := v.Unmarshal(&opts); err != nil {
		tempLogger.Error("Error unmarshalling configuration", slog.Any("error", err))
		return opts, tempLogger, fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	// Command-line flags for the core paths take absolute precedence over
	// anything unmarshalled from files or environment.
	if flags.Changed("input") {
		if inputVal, _ := flags.GetString("input"); inputVal != "" {
			opts.InputPath = inputVal
		}
	}
	if flags.Changed("output") {
		if outputVal, _ := flags.GetString("output"); outputVal != "" {
			opts.OutputPath = outputVal
		}
	}

	// Boolean flag bindings can lose explicit "false"; make flags win.
	if flags.Changed("verbose") {
		opts.Verbose, _ = flags.GetBool("verbose")
	}
	if flags.Changed("no-tui") {
		if noTui, _ := flags.GetBool("no-tui"); noTui {
			opts.TuiEnabled = false
		}
	}
	if flags.Changed("skip-existing") {
		opts.SkipExisting, _ = flags.GetBool("skip-existing")
	}
	if flags.Changed("strict-profile") {
		opts.StrictProfile, _ = flags.GetBool("strict-profile")
	}

	// --auto-wb on its own replaces the camera-WB default rather than
	// colliding with it; both set explicitly still fails validation.
	if flags.Changed("auto-wb") && !flags.Changed("camera-wb") {
		if autoWB, _ := flags.GetBool("auto-wb"); autoWB {
			opts.Decode.UseAutoWB = true
			opts.Decode.UseCameraWB = false
		}
	}

	// --- Setup Final Logger ---
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logHandler)
	opts.Logger = logHandler

	if err := validateAndDeriveOptions(&opts, logger, flags); err != nil {
		return opts, logger, err
	}

	logger.Debug("Configuration loading and validation complete",
		slog.String("configFile", opts.ConfigFilePath),
		slog.String("profile", opts.ProfileName),
		slog.Bool("verbose", opts.Verbose),
		slog.String("logLevel", logLevel.String()),
	)

	return opts, logger, nil
}

// setDefaults establishes the default values for configuration options in Viper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("verbose", converter.DefaultVerbose)
	v.SetDefault("tuiEnabled", converter.DefaultTuiEnabled)
	v.SetDefault("onError", string(converter.DefaultOnErrorMode))
	v.SetDefault("outputFormat", string(converter.DefaultOutputFormat))

	v.SetDefault("quality", converter.DefaultQuality)
	v.SetDefault("extensions", converter.DefaultExtensions)
	v.SetDefault("concurrency", converter.DefaultConcurrency)
	v.SetDefault("skipExisting", converter.DefaultSkipExisting)

	v.SetDefault("profileDir", "")
	v.SetDefault("brand", "")
	v.SetDefault("model", "")
	v.SetDefault("scene", "")
	v.SetDefault("strictProfile", converter.DefaultStrictProfile)

	v.SetDefault("dcrawPath", converter.DefaultDcrawPath)
	v.SetDefault("decode.useCameraWB", true)
	v.SetDefault("decode.useAutoWB", false)
	v.SetDefault("decode.brightness", 1.0)
	v.SetDefault("decode.halfSize", false)
	v.SetDefault("decode.preserveHighlights", false)
	v.SetDefault("decode.fourColorRGB", false)
}

// isValidEnumValue checks if a given string value is present in a slice of allowed enum values.
func isValidEnumValue[T ~string](value T, allowedValues []T) bool {
	return slices.Contains(allowedValues, value)
}

// validateAndDeriveOptions performs semantic validation on the populated
// Options struct and calculates derived fields. It wraps errors with
// converter.ErrConfigValidation.
func validateAndDeriveOptions(opts *converter.Options, logger *slog.Logger, flags *pflag.FlagSet) error {
	// === Path Validations ===
	if opts.InputPath == "" {
		err := fmt.Errorf("%w: input path is required (-i, --input)", converter.ErrConfigValidation)
		logger.Error(err.Error(), slog.String("key", "InputPath"))
		return err
	}
	absInput, err := filepath.Abs(opts.InputPath)
	if err != nil {
		err = fmt.Errorf("%w: cannot resolve absolute input path '%s': %w", converter.ErrConfigValidation, opts.InputPath, err)
		logger.Error(err.Error(), slog.String("key", "InputPath"))
		return err
	}
	opts.InputPath = absInput
	info, err := os.Stat(opts.InputPath)
	if err != nil {
		if os.IsNotExist(err) {
			err = fmt.Errorf("%w: input path '%s' does not exist", converter.ErrInputPathNotFound, opts.InputPath)
		} else {
			err = fmt.Errorf("%w: cannot access input path '%s': %w", converter.ErrConfigValidation, opts.InputPath, err)
		}
		logger.Error(err.Error(), slog.String("key", "InputPath"))
		return err
	}
	if !info.IsDir() {
		err = fmt.Errorf("%w: input path '%s' is not a directory", converter.ErrInputPathNotFound, opts.InputPath)
		logger.Error(err.Error(), slog.String("key", "InputPath"))
		return err
	}

	if opts.OutputPath == "" {
		err := fmt.Errorf("%w: output path is required (-o, --output)", converter.ErrConfigValidation)
		logger.Error(err.Error(), slog.String("key", "OutputPath"))
		return err
	}
	absOutput, err := filepath.Abs(opts.OutputPath)
	if err != nil {
		err = fmt.Errorf("%w: cannot resolve absolute output path '%s': %w", converter.ErrConfigValidation, opts.OutputPath, err)
		logger.Error(err.Error(), slog.String("key", "OutputPath"))
		return err
	}
	opts.OutputPath = absOutput
	// Create the output directory now so writability problems surface before
	// any decoding work starts.
	if mkdirErr := os.MkdirAll(opts.OutputPath, 0o755); mkdirErr != nil {
		err := fmt.Errorf("%w: cannot create or access output directory '%s': %w", converter.ErrConfigValidation, opts.OutputPath, mkdirErr)
		logger.Error(err.Error(), slog.String("key", "OutputPath"))
		return err
	}

	if opts.ProfileDir != "" {
		absProfileDir, pathErr := filepath.Abs(opts.ProfileDir)
		if pathErr != nil {
			err := fmt.Errorf("%w: cannot resolve absolute profile directory '%s': %w", converter.ErrConfigValidation, opts.ProfileDir, pathErr)
			logger.Error(err.Error(), slog.String("key", "profileDir"))
			return err
		}
		opts.ProfileDir = absProfileDir
	}

	// === Enum String Validations ===
	allowedOnError := []converter.OnErrorMode{converter.OnErrorContinue, converter.OnErrorStop}
	if !isValidEnumValue(opts.OnErrorMode, allowedOnError) {
		err := fmt.Errorf("%w: invalid value '%s' for key 'onError' (flag --on-error). Allowed: %v", converter.ErrConfigValidation, opts.OnErrorMode, allowedOnError)
		logger.Error(err.Error(), slog.String("key", "onError"))
		return err
	}
	allowedOutputFormat := []converter.OutputFormat{converter.OutputFormatText, converter.OutputFormatJSON, converter.OutputFormatYAML}
	if !isValidEnumValue(opts.OutputFormat, allowedOutputFormat) {
		err := fmt.Errorf("%w: invalid value '%s' for key 'outputFormat' (flag --output-format). Allowed: %v", converter.ErrConfigValidation, opts.OutputFormat, allowedOutputFormat)
		logger.Error(err.Error(), slog.String("key", "outputFormat"))
		return err
	}

	// === Numeric Range Validations ===
	if opts.Quality < 1 || opts.Quality > 100 {
		err := fmt.Errorf("%w: invalid value '%d' for key 'quality' (flag --quality). Must be between 1 and 100", converter.ErrConfigValidation, opts.Quality)
		logger.Error(err.Error(), slog.String("key", "quality"), slog.Int("value", opts.Quality))
		return err
	}
	if opts.Concurrency < 0 {
		err := fmt.Errorf("%w: invalid value '%d' for key 'concurrency' (flag --concurrency). Must be >= 0", converter.ErrConfigValidation, opts.Concurrency)
		logger.Error(err.Error(), slog.String("key", "concurrency"), slog.Int("value", opts.Concurrency))
		return err
	}
	if opts.Decode.Brightness < 0 {
		err := fmt.Errorf("%w: invalid value '%f' for key 'decode.brightness' (flag --brightness). Must be >= 0", converter.ErrConfigValidation, opts.Decode.Brightness)
		logger.Error(err.Error(), slog.String("key", "decode.brightness"))
		return err
	}
	if opts.Decode.UseCameraWB && opts.Decode.UseAutoWB {
		err := fmt.Errorf("%w: camera white balance and auto white balance are mutually exclusive", converter.ErrConfigValidation)
		logger.Error(err.Error())
		return err
	}

	// === Derive Extensions ===
	var exts []string
	for _, ext := range opts.Extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			exts = append(exts, ext)
		}
	}
	if len(exts) == 0 {
		err := fmt.Errorf("%w: extension allowlist cannot be empty (flag --extensions)", converter.ErrConfigValidation)
		logger.Error(err.Error(), slog.String("key", "extensions"))
		return err
	}
	opts.Extensions = exts

	if opts.Concurrency == 0 {
		opts.Concurrency = converter.DefaultConcurrency
	}

	// Verbose logging and the TUI both want the terminal; verbose wins.
	if opts.Verbose {
		opts.TuiEnabled = false
	} else if flags.Changed("no-tui") {
		if noTui, _ := flags.GetBool("no-tui"); noTui {
			opts.TuiEnabled = false
		}
	}

	logger.Debug("Final derived settings validated",
		slog.Int("quality", opts.Quality),
		slog.Int("concurrency", opts.Concurrency),
		slog.Any("extensions", opts.Extensions),
		slog.String("profileDir", opts.ProfileDir),
		slog.Bool("tuiEnabledEffective", opts.TuiEnabled),
	)

	return nil
}
