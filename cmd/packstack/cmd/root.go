package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aweris/packstack"
	"github.com/aweris/packstack/internal/layerstore"
	"github.com/aweris/packstack/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:           "packstack",
	Short:         "Layered resource resolution for multi-loader mod projects",
	Long:          "Plan, resolve, inspect and export the effective resources of every (version, loader) pair of a mod project.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: $XDG_CONFIG_HOME/packstack/config.yaml)")
	rootCmd.PersistentFlags().StringP("project", "C", "", "project directory (default: current directory)")
	rootCmd.PersistentFlags().Int("concurrency", packstack.DefaultConcurrency, "parallel layer reads")
	rootCmd.PersistentFlags().Int("cache-size", packstack.DefaultCacheSize, "cached (version, loader) results")
	rootCmd.PersistentFlags().StringSlice("ignore", nil, "extra glob patterns excluded from every layer")
	rootCmd.PersistentFlags().Bool("content-digest", false, "digest layers by content instead of size and mtime")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json, logfmt)")

	viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project"))
	viper.BindPFlag("concurrency", rootCmd.PersistentFlags().Lookup("concurrency"))
	viper.BindPFlag("cache_size", rootCmd.PersistentFlags().Lookup("cache-size"))
	viper.BindPFlag("ignore", rootCmd.PersistentFlags().Lookup("ignore"))
	viper.BindPFlag("content_digest", rootCmd.PersistentFlags().Lookup("content-digest"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	if cfg := rootCmd.PersistentFlags().Lookup("config").Value.String(); cfg != "" {
		viper.SetConfigFile(cfg)
	} else {
		viper.AddConfigPath(filepath.Join(xdg.ConfigHome, "packstack"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PACKSTACK")
	viper.AutomaticEnv()
	viper.SetDefault("project", ".")

	viper.ReadInConfig()
}

func newLogger() *log.Logger {
	cfg := logger.DefaultConfig()
	cfg.Level = viper.GetString("log_level")
	cfg.Format = viper.GetString("log_format")
	return logger.New(cfg)
}

func openProject() (*packstack.Project, error) {
	dir := viper.GetString("project")
	if dir == "" {
		dir = "."
	}
	opts := []packstack.Option{
		packstack.WithConcurrency(viper.GetInt("concurrency")),
		packstack.WithCacheSize(viper.GetInt("cache_size")),
		packstack.WithContentDigest(viper.GetBool("content_digest")),
		packstack.WithLogger(newLogger()),
	}
	if ignore := viper.GetStringSlice("ignore"); len(ignore) > 0 {
		opts = append(opts, packstack.WithIgnore(slices.Concat(layerstore.DefaultIgnore, ignore)...))
	}
	return packstack.Open(dir, opts...)
}
