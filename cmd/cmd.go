package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// configPath is the directory holding config.yml, shared by every subcommand.
var configPath string

var rootCmd = &cobra.Command{
	Use:           "expense-approval",
	Short:         "Expense Approval",
	Long:          `Multi-step expense approval for companies: submission, approval chains and reporting.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// configFromEnvironment reports whether config comes from env vars only.
// Container images ship without config.yml.
func configFromEnvironment() bool {
	return os.Getenv("APP_ENV") == "production" || os.Getenv("DOCKER_ENV") == "true"
}

func loadConfig(dir string) (*internal.Config, error) {
	var (
		cfg    *internal.Config
		source string
		err    error
	)
	if configFromEnvironment() {
		cfg, source = internal.LoadConfigFromEnv(), "environment"
	} else {
		cfg, err = readConfigFile(dir)
		if err != nil {
			return nil, err
		}
		source = dir + "/config.yml"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config from %s: %w", source, err)
	}
	return cfg, nil
}

// readConfigFile loads config.yml from dir. ENV_-prefixed variables override
// file values, e.g. ENV_DATABASE_HOST for database.host.
func readConfigFile(dir string) (*internal.Config, error) {
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.SetEnvPrefix("ENV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := &internal.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "directory containing config.yml")
	rootCmd.AddCommand(httpServerCmd, migrateCmd, seedCmd)
}
