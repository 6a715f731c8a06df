package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/open-xchange/drivesync/internal/db"
	"github.com/open-xchange/drivesync/internal/server"
	"github.com/open-xchange/drivesync/internal/utils"
	"github.com/open-xchange/drivesync/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "DRIVESYNC"

var rootCmd = &cobra.Command{
	Use:     "drivesync-server",
	Short:   "DriveSync synchronization server",
	Version: version.Detailed(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := resolvePaths(cfg); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		cmd.SilenceUsage = true

		closeLog, err := setupLogger(cfg.LogDir)
		if err != nil {
			return err
		}
		defer closeLog()

		showHeader(cfg)

		srv, err := server.New(cfg)
		if err != nil {
			return err
		}
		defer slog.Info("Bye!")
		return srv.Start(cmd.Context())
	},
}

func init() {
	registerFlags(rootCmd)
}

func registerFlags(cmd *cobra.Command) {
	cmd.Flags().SortFlags = false
	cmd.Flags().StringP("bind", "b", server.DefaultAddr, "Address to bind the server")
	cmd.Flags().String("cert", "", "Path to the TLS certificate file")
	cmd.Flags().String("key", "", "Path to the TLS key file")
	cmd.Flags().StringP("db", "d", server.DefaultDBPath, "Path to the sqlite database")
	cmd.Flags().String("log-dir", "", "Directory for the server log and sync journals")
	cmd.PersistentFlags().StringP("config", "c", "", "Config file (json, yaml or toml)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig merges defaults, the optional config file, DRIVESYNC_* env
// variables and flags, in increasing order of precedence.
func loadConfig(cmd *cobra.Command) (*server.Config, error) {
	v := viper.New()
	setDefaults(v, server.DefaultConfig())

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/drivesync")
		v.SetConfigName("drivesync")
	}
	if err := v.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
		}
	}

	v.BindPFlag("http.addr", cmd.Flags().Lookup("bind"))
	v.BindPFlag("http.cert_file", cmd.Flags().Lookup("cert"))
	v.BindPFlag("http.key_file", cmd.Flags().Lookup("key"))
	v.BindPFlag("db.path", cmd.Flags().Lookup("db"))
	v.BindPFlag("log_dir", cmd.Flags().Lookup("log-dir"))

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &server.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	return cfg, nil
}

// resolvePaths expands `~` and makes every configured file path absolute.
func resolvePaths(cfg *server.Config) error {
	paths := []*string{
		&cfg.HTTP.CertFile,
		&cfg.HTTP.KeyFile,
		&cfg.Sync.RulesFile,
		&cfg.LogDir,
	}
	if cfg.DB.Path != db.MemoryPath {
		paths = append(paths, &cfg.DB.Path)
	}
	for _, p := range paths {
		if *p == "" {
			continue
		}
		resolved, err := utils.ResolvePath(*p)
		if err != nil {
			return fmt.Errorf("resolve path %q: %w", *p, err)
		}
		*p = resolved
	}
	return nil
}

// setDefaults registers every key so that env variables are picked up by Unmarshal.
func setDefaults(v *viper.Viper, cfg *server.Config) {
	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("http.cert_file", cfg.HTTP.CertFile)
	v.SetDefault("http.key_file", cfg.HTTP.KeyFile)
	v.SetDefault("http.rate_limit", cfg.HTTP.RateLimit)
	v.SetDefault("http.cors_origins", cfg.HTTP.CORSOrigins)
	v.SetDefault("http.trusted_proxies", cfg.HTTP.TrustedProxies)
	v.SetDefault("db.path", cfg.DB.Path)
	v.SetDefault("links.base_url", cfg.Links.BaseURL)
	v.SetDefault("sync.exclusions", cfg.Sync.Exclusions)
	v.SetDefault("sync.rules_file", cfg.Sync.RulesFile)
	v.SetDefault("sync.detect_renames", cfg.Sync.DetectRenames)
	v.SetDefault("sync.metadata_cache_size", cfg.Sync.MetadataCacheSize)
	v.SetDefault("sync.metadata_cache_ttl", cfg.Sync.MetadataCacheTTL)
	v.SetDefault("sync.upload_ttl", cfg.Sync.UploadTTL)
	v.SetDefault("log_dir", cfg.LogDir)
}

// setupLogger logs to stdout and, when logDir is set, to logDir/server.log.
func setupLogger(logDir string) (func(), error) {
	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	if logDir == "" {
		slog.SetDefault(slog.New(stdoutHandler))
		return func() {}, nil
	}

	if err := utils.EnsureDir(logDir); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(filepath.Join(logDir, "server.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})

	slog.SetDefault(slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler)))
	return func() { file.Close() }, nil
}

func showHeader(cfg *server.Config) {
	showHeaderTo(os.Stdout, cfg)
}

func showHeaderTo(w io.Writer, cfg *server.Config) {
	title := color.New(color.FgHiCyan, color.Bold).SprintFunc()
	dim := color.New(color.FgHiBlack).SprintFunc()

	scheme := "http"
	if cfg.HTTP.TLS() {
		scheme = "https"
	}
	fmt.Fprintf(w, "%s %s\n", title(version.AppName), dim(version.Short()))
	fmt.Fprintf(w, "%s %s://%s\n", dim("listen"), scheme, cfg.HTTP.Addr)
	fmt.Fprintf(w, "%s %s\n\n", dim("db    "), cfg.DB.Path)
}
