package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tenderdesk/internal/config"
	"github.com/felixgeelhaar/tenderdesk/internal/errors"
	"github.com/felixgeelhaar/tenderdesk/internal/log"
	"github.com/felixgeelhaar/tenderdesk/internal/ux"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or edit tenderdesk configuration",
	Long: `Manage the configuration stored at ~/.tenderdesk/config.yaml

Configuration includes:
  • The backend API address and request timeout
  • The credential store backend (file, sqlite, redis or memory)
  • Logging settings
  • The state directory

Environment variables named TENDERDESK_<SECTION>_<KEY> override the file.

Examples:
  # View the effective configuration
  tenderdesk config view

  # Write the defaults to the config file
  tenderdesk config init

  # Get or set a single value
  tenderdesk config get api.base_url
  tenderdesk config set store.backend sqlite

  # Show configuration file path
  tenderdesk config path
`,
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Display the effective configuration",
	Long:  `Display the configuration after defaults, file and environment are applied. Secrets are redacted.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigView,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  `Retrieve the value of a configuration key using dot notation (e.g., api.base_url).`,
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a specific configuration value",
	Long:  `Set the value of a configuration key in the config file using dot notation (e.g., store.backend sqlite).`,
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var configInitForce bool

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing config file")

	configCmd.AddCommand(configViewCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)

	rootCmd.AddCommand(configCmd)
}

// configPath returns --config or the default location.
func configPath(cc *CommandContext) string {
	if cc.ConfigPath != "" {
		return cc.ConfigPath
	}
	return config.DefaultPath()
}

func runConfigView(cmd *cobra.Command, _ []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg, err := cc.LoadConfig()
	if err != nil {
		return err
	}
	out, err := cc.Formatter(cmd.OutOrStdout())
	if err != nil {
		return err
	}

	redacted := *cfg
	if redacted.Store.Passphrase != "" {
		redacted.Store.Passphrase = log.Redact(redacted.Store.Passphrase)
	}
	if redacted.Store.RedisPassword != "" {
		redacted.Store.RedisPassword = log.Redact(redacted.Store.RedisPassword)
	}

	if cc.Format == "" || cc.Format == ux.FormatText {
		// Text output is the YAML document itself, prefixed with its source.
		yamlOut, err := ux.NewFormatter(ux.FormatYAML, &ux.FormatterOptions{Writer: cmd.OutOrStdout()})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", configPath(cc))
		return yamlOut.Format(&redacted)
	}
	return out.Format(&redacted)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	path := configPath(cc)

	if _, err := os.Stat(path); err == nil && !configInitForce {
		return errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("%s already exists", path)).
			WithSuggestion("Pass --force to overwrite it")
	}

	cfg := config.Default(filepath.Dir(path))
	if err := cfg.Save(path); err != nil {
		return errors.Wrap(errors.ErrCodeConfigRead, "writing config file", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", path)
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg, err := cc.LoadConfig()
	if err != nil {
		return err
	}

	value, err := getNestedValue(cfg, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	path := configPath(cc)

	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	if err := setNestedValue(cfg, args[0], args[1]); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(path); err != nil {
		return errors.Wrap(errors.ErrCodeConfigRead, "writing config file", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Set %s = %s\n", args[0], args[1])
	return nil
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), configPath(cc))
	return nil
}

// getNestedValue retrieves a value from the config using dot notation
func getNestedValue(cfg *config.Config, key string) (string, error) {
	switch key {
	case "api.base_url":
		return cfg.API.BaseURL, nil
	case "api.timeout":
		return strconv.Itoa(cfg.API.Timeout), nil
	case "store.backend":
		return cfg.Store.Backend, nil
	case "store.path":
		return cfg.Store.Path, nil
	case "store.sqlite_path":
		return cfg.Store.SQLitePath, nil
	case "store.redis_addr":
		return cfg.Store.RedisAddr, nil
	case "store.redis_db":
		return strconv.Itoa(cfg.Store.RedisDB), nil
	case "store.key_prefix":
		return cfg.Store.KeyPrefix, nil
	case "logging.level":
		return cfg.Logging.Level, nil
	case "logging.format":
		return cfg.Logging.Format, nil
	case "logging.output":
		return cfg.Logging.Output, nil
	case "state_dir":
		return cfg.StateDir, nil
	case "store.passphrase", "store.redis_password":
		return "", errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("%s is a secret and is not printed", key))
	default:
		return "", unknownKey(key)
	}
}

// setNestedValue sets a value in the config using dot notation
func setNestedValue(cfg *config.Config, key, value string) error {
	switch key {
	case "api.base_url":
		cfg.API.BaseURL = value
	case "api.timeout":
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrap(errors.ErrCodeConfigInvalid, "api.timeout must be a number of seconds", err)
		}
		cfg.API.Timeout = n
	case "store.backend":
		cfg.Store.Backend = value
	case "store.path":
		cfg.Store.Path = value
	case "store.passphrase":
		cfg.Store.Passphrase = value
	case "store.sqlite_path":
		cfg.Store.SQLitePath = value
	case "store.redis_addr":
		cfg.Store.RedisAddr = value
	case "store.redis_db":
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrap(errors.ErrCodeConfigInvalid, "store.redis_db must be a number", err)
		}
		cfg.Store.RedisDB = n
	case "store.redis_password":
		cfg.Store.RedisPassword = value
	case "store.key_prefix":
		cfg.Store.KeyPrefix = value
	case "logging.level":
		cfg.Logging.Level = value
	case "logging.format":
		cfg.Logging.Format = value
	case "logging.output":
		cfg.Logging.Output = value
	case "state_dir":
		cfg.StateDir = value
	default:
		return unknownKey(key)
	}
	return nil
}

func unknownKey(key string) error {
	return errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("unknown configuration key: %s", key)).
		WithSuggestion("Run 'tenderdesk config view' to see every key")
}
