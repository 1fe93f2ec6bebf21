// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/internal/config"
	"github.com/xkilldash9x/chatpilot/internal/observability"
)

// rootOptions carries the global flags and the configuration resolved from
// them to the subcommands.
type rootOptions struct {
	cfgFile  string
	envFile  string
	engine   string
	headful  bool
	logLevel string

	cfg *config.Config
}

// NewRootCommand builds a fresh command tree. A new tree per execution keeps
// flag state from leaking between runs.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "chatpilot",
		Short:         "chatpilot drives a web chat assistant through a real browser.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// This function runs before any command, setting up config and logging.
			cfg, err := initializeConfig(cmd, opts)
			if err != nil {
				return err
			}
			opts.cfg = cfg

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting chatpilot", zap.String("version", Version))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "config file (default is ./config.yaml, then ~/.chatpilot/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file with CHATPILOT_* variables")
	rootCmd.PersistentFlags().StringVar(&opts.engine, "engine", "", "browser engine: chromium or firefox (overrides browser.engine)")
	rootCmd.PersistentFlags().BoolVar(&opts.headful, "headful", false, "show the browser window")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides logger.level)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newSendCmd(opts))
	rootCmd.AddCommand(newChatCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the command line in args. Errors are logged and returned so
// the caller can pick the exit status.
func Execute(ctx context.Context, args []string) error {
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
		observability.GetLogger().Debug("Command execution failed", zap.Error(err))
	}
	observability.Sync()
	return err
}

// initializeConfig loads the dotenv file, the config file and CHATPILOT_*
// environment variables, then applies flag overrides.
func initializeConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	if opts.envFile != "" {
		// Variables already present in the environment win over the file.
		if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading env file %s: %w", opts.envFile, err)
		}
	}

	v := viper.New()
	config.SetDefaults(v)

	if opts.cfgFile != "" {
		v.SetConfigFile(opts.cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".chatpilot"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("CHATPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars
	}

	if cmd.Flags().Changed("log-level") {
		v.Set("logger.level", opts.logLevel)
	}

	cfg, err := config.NewConfigFromViper(v)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("engine") {
		cfg.SetBrowserEngine(opts.engine)
	}
	if opts.headful {
		cfg.SetBrowserHeadless(false)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
