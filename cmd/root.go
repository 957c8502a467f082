package cmd

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment variables overriding configuration keys,
// BUILDERGEN_LOG_LEVEL for log.level.
const EnvPrefix = "BUILDERGEN"

var (
	configFiles      []string
	level, logFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "buildergen",
	Short:         "generate type-state builders",
	Long:          "Generate compile-time checked builders for Go structs, functions and methods annotated with //builder:gen",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		printErrors(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVarP(&level, "level", "l", "info", "log level (trace, debug, info, warn, error, debug+1, etc)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().StringSliceVar(&configFiles, "config", []string{}, "config file(s) - multiple config files are merged with last specified file having highest priority")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// parseLevel accepts slog level names and trace.
func parseLevel(s string) (slog.Level, error) {
	if strings.EqualFold(s, "trace") {
		return slog.Level(-8), nil
	}
	var ll slog.Level
	if err := (&ll).UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level: %s", s)
	}
	return ll, nil
}

func newLogger(lvl, format string) (*slog.Logger, error) {
	ll, err := parseLevel(lvl)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{
		AddSource:   false,
		Level:       ll,
		ReplaceAttr: nil,
	}
	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	l, err := newLogger(level, logFormat)
	if err != nil {
		panic(err)
	}
	slog.SetDefault(l)

	if len(configFiles) > 0 {
		// Use config file from the flag.
		viper.SetConfigFile(configFiles[0])
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".buildergen")
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		l.With("config", viper.ConfigFileUsed()).Debug("using config file(s)")
	} else if len(configFiles) > 0 {
		l.With("error", err, "config", viper.ConfigFileUsed()).Warn("unable to use config file(s)")
	}
	if len(configFiles) > 1 {
		for _, file := range configFiles[1:] {
			if configBytes, err := os.ReadFile(file); err == nil {
				if err = viper.MergeConfig(bytes.NewReader(configBytes)); err != nil {
					l.With("error", err, "file", file).Warn("failed to merge config file")
				} else {
					l.With("file", file).Debug("merged config file")
				}
			}
		}
	}
	if len(version) > 0 {
		viper.Set("version", version)
	}

	// The config file or environment may set the level and format when the
	// flags were left alone.
	if lvl, format := viper.GetString("log.level"), viper.GetString("log.format"); lvl != level || format != logFormat {
		if l, err = newLogger(lvl, format); err != nil {
			panic(err)
		}
		slog.SetDefault(l)
	}
}
