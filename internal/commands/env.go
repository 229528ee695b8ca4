package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"

	"github.com/tallyhq/tally/internal/auditlog"
	"github.com/tallyhq/tally/internal/batch"
	"github.com/tallyhq/tally/internal/categorize"
	"github.com/tallyhq/tally/internal/config"
	"github.com/tallyhq/tally/internal/database"
	"github.com/tallyhq/tally/internal/importer"
	"github.com/tallyhq/tally/internal/ledger"
)

// env is a loaded workspace: config, database and the services on top.
// Relative paths in the config resolve against the config file's directory.
type env struct {
	cfg      *config.Config
	dir      string
	loc      *time.Location
	logger   *log.Logger
	db       *gorm.DB
	ledger   *ledger.Service
	registry *importer.Registry
	batches  *batch.Service
}

func openEnv(ctx context.Context, configPath string, out io.Writer) (*env, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	dir := filepath.Dir(absPath)

	if err := config.LoadEnvFile(filepath.Join(dir, ".env")); err != nil {
		return nil, err
	}
	cfg, err := config.Load(absPath)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Import.Location()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.Log.Level, out)

	db, err := database.Open(resolveDB(dir, cfg.Database))
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, err
	}

	e := &env{
		cfg:      cfg,
		dir:      dir,
		loc:      loc,
		logger:   logger,
		db:       db,
		ledger:   ledger.NewService(db, loc),
		registry: importer.DefaultRegistry(parserOptions(cfg.Import, loc)),
	}

	suggester, err := buildSuggester(ctx, cfg.Categorize, e.ledger, logger)
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}
	e.batches = batch.NewService(db, e.registry,
		batch.WithSuggester(suggester),
		batch.WithAudit(auditlog.New(e.path(cfg.Audit.Path))),
		batch.WithLogger(logger),
	)
	return e, nil
}

func (e *env) Close() error {
	return database.Close(e.db)
}

// workspace returns the configured workspace ID.
func (e *env) workspace() (string, error) {
	if e.cfg.Workspace.ID == "" {
		return "", fmt.Errorf("no workspace id in config; run `tally init` first")
	}
	return e.cfg.Workspace.ID, nil
}

func (e *env) path(p string) string {
	return resolve(e.dir, p)
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// resolveDB anchors a relative SQLite file next to the config.
func resolveDB(dir string, cfg config.DatabaseConfig) config.DatabaseConfig {
	if cfg.Driver == "" || cfg.Driver == database.DriverSQLite {
		if cfg.DSN != ":memory:" && !strings.HasPrefix(cfg.DSN, "file:") {
			cfg.DSN = resolve(dir, cfg.DSN)
		}
	}
	return cfg
}

func parserOptions(cfg config.ImportConfig, loc *time.Location) importer.Options {
	opts := importer.Options{Location: loc}
	if cfg.Strict {
		opts.Policy = importer.Strict
	}
	return opts
}

// buildSuggester chains rules first, then the Bayes model, then Gemini.
func buildSuggester(ctx context.Context, cfg config.CategorizeConfig, lg *ledger.Service, logger *log.Logger) (categorize.Suggester, error) {
	suggesters := []categorize.Suggester{categorize.NewRuleSuggester(lg)}
	if cfg.Bayes {
		suggesters = append(suggesters, categorize.NewBayesSuggester(lg))
	}
	if cfg.Gemini.APIKey != "" {
		gen, err := categorize.NewGeminiGenerator(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			return nil, err
		}
		suggesters = append(suggesters, categorize.NewGeminiSuggester(gen, lg))
	}
	return categorize.NewChain(logger, suggesters...), nil
}

func newLogger(level string, out io.Writer) *log.Logger {
	if out == nil {
		out = os.Stderr
	}
	logger := log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		Prefix:          "tally",
	})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}
