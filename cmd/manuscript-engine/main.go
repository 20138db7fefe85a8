// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the manuscript-engine CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/manuscript-engine/internal/journal"
	"github.com/pdiddy/manuscript-engine/internal/manuscript"
	"github.com/pdiddy/manuscript-engine/internal/secrets"
	"github.com/pdiddy/manuscript-engine/internal/store"
	"github.com/pdiddy/manuscript-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// logger is built in PersistentPreRunE; commands log through it.
	logger = zap.NewNop()

	// engineCfg is the merged configuration: defaults, config file,
	// environment, then .secrets/ for credentials still unset.
	engineCfg = types.DefaultEngineConfig()
)

// rootCmd is the base command for the manuscript-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "manuscript-engine",
	Short: "Section-by-section drafting, citation resolution and assembly of clinical manuscripts",
	Long: `manuscript-engine drafts a research manuscript one section at a time
against a frozen fact sheet and a confirmed reference set, resolves citation
placeholders into numbered references, runs QA and duplication checks, and
assembles the locked sections into a submission document.

State lives in a SQLite database inside the workspace directory. Sections
are drafted with generate, reviewed, then frozen with lock. Only locked
sections are assembled.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}

		verbose, _ := cmd.Flags().GetBool("verbose")
		l, err := newLogger(verbose)
		if err != nil {
			return err
		}
		logger = l

		return loadConfig()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./manuscript-engine.yaml or ~/.config/manuscript-engine/config.yaml)")
	rootCmd.PersistentFlags().String("workspace", ".", "workspace directory holding the manuscript database")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging on stderr")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("manuscript-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "manuscript-engine"))
		}
	}

	viper.SetEnvPrefix("MANUSCRIPT_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Conventional variable names for credentials, read after .env.
	_ = viper.BindEnv("generation.api_key", "MANUSCRIPT_ENGINE_GENERATION_API_KEY", "ANTHROPIC_API_KEY")
	_ = viper.BindEnv("references.ncbi_api_key", "MANUSCRIPT_ENGINE_REFERENCES_NCBI_API_KEY", "NCBI_API_KEY")

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig merges viper settings over the defaults, fills credentials
// from .secrets/ and validates the result.
func loadConfig() error {
	cfg := types.DefaultEngineConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}

	s, err := secrets.Load(filepath.Join(cfg.Workspace, ".secrets"), logger)
	if err != nil {
		return err
	}
	if len(s) > 0 {
		keys := make([]string, 0, len(s))
		for k := range s {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		logger.Debug("loaded secrets", zap.Strings("keys", keys))
	}
	secrets.Apply(s, &cfg)

	if err := journal.ValidateConfig(cfg); err != nil {
		return err
	}
	engineCfg = cfg
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.Encoding = "console"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	l, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return l, nil
}

// openWorkspace opens the store and loads the manuscript. The caller
// closes the store.
func openWorkspace(ctx context.Context) (*store.Store, *manuscript.Manuscript, error) {
	st, err := store.Open(engineCfg.Workspace, logger)
	if err != nil {
		return nil, nil, err
	}
	m, err := st.Load(ctx, manuscript.WithLogger(logger))
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return st, m, nil
}

// commandContext is cancelled on interrupt so long-running calls stop
// without writing partial state.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt)
}

func lastAudit(m *manuscript.Manuscript) manuscript.AuditEvent {
	trail := m.AuditTrail()
	return trail[len(trail)-1]
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
