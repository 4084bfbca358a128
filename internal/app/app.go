// Package app assembles a running remindline process from a workspace: config,
// database, engine, notifier and logger.
package app

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"remindline/internal/config"
	"remindline/internal/db"
	"remindline/internal/engine"
	"remindline/internal/migrate"
	"remindline/internal/notify"
)

type Options struct {
	Workspace string
	// ConfigPath overrides <workspace>/remindline.yml.
	ConfigPath string
	// Override is applied to the loaded config before validation of derived
	// components. Used for environment and flag overrides.
	Override func(*config.Config)
	// Log defaults to a logger built from the log section of the config.
	Log *zap.Logger
}

// Env is an opened workspace. Close releases the database.
type Env struct {
	Conn   *sqlx.DB
	Config *config.Config
	Engine engine.Engine
	Log    *zap.Logger
}

func (e *Env) Close() error {
	if e.Conn == nil {
		return nil
	}
	return e.Conn.Close()
}

// LoadConfig reads the config file, falling back to defaults when the workspace
// has none.
func LoadConfig(workspace, path string) (*config.Config, error) {
	if path != "" {
		return config.FromFile(path)
	}
	return config.LoadOptional(workspace)
}

// Open loads config, migrates the database and wires the engine with a notifier
// and localized texts.
func Open(opts Options) (*Env, error) {
	cfg, err := LoadConfig(opts.Workspace, opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Override != nil {
		opts.Override(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	log := opts.Log
	if log == nil {
		if log, err = NewLogger(cfg.Log.Level, cfg.Log.Format); err != nil {
			return nil, err
		}
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn.DB); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	e, err := engine.New(conn, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	texts, err := notify.NewTexts(cfg.Notifier.Language, log)
	if err != nil {
		conn.Close()
		return nil, err
	}
	e.Texts = texts
	e.Notifier = NewNotifier(cfg, log)
	e.Log = log
	return &Env{Conn: conn, Config: cfg, Engine: e, Log: log}, nil
}

// NewNotifier picks the delivery channel named by notifier.kind.
func NewNotifier(cfg *config.Config, log *zap.Logger) notify.Notifier {
	if cfg.Notifier.Kind == "webhook" {
		return notify.NewWebhookNotifier(cfg.Notifier.URL, cfg.Notifier.Token, cfg.Notifier.Timeout)
	}
	return &notify.LogNotifier{Log: log.Named("notify")}
}

// NewLogger builds a JSON production logger or a console development logger.
func NewLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	var zcfg zap.Config
	switch format {
	case "", "json":
		zcfg = zap.NewProductionConfig()
	case "console":
		zcfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("log format must be 'json' or 'console'")
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.OutputPaths = []string{"stderr"}
	return zcfg.Build()
}
