package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/rayjob/adapter"
	natsadapter "github.com/justapithecus/rayjob/adapter/nats"
	redisadapter "github.com/justapithecus/rayjob/adapter/redis"
	"github.com/justapithecus/rayjob/adapter/webhook"
	"github.com/justapithecus/rayjob/cli/config"
	"github.com/justapithecus/rayjob/cli/state"
	"github.com/justapithecus/rayjob/dashboard"
	"github.com/justapithecus/rayjob/jobs"
	"github.com/justapithecus/rayjob/journal"
	"github.com/justapithecus/rayjob/log"
	"github.com/justapithecus/rayjob/metrics"
	"github.com/justapithecus/rayjob/packages"
)

// env holds everything a command needs, built from flags and config.
type env struct {
	cfg     *config.Config
	logger  *log.Logger
	metrics *metrics.Collector
	client  *dashboard.Client
	state   *state.Store
	stderr  io.Writer

	metricsPath string
	closers     []func() error
}

// newEnv loads config and builds the dashboard client. Flags override the
// config file, which overrides built-in defaults.
func newEnv(c *cli.Context) (*env, error) {
	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, cli.Exit(err.Error(), exitError)
		}
		cfg = loaded
	}

	levelName := cfg.Log.Level
	if c.IsSet("log-level") {
		levelName = c.String("log-level")
	}
	if levelName == "" {
		levelName = "warn"
	}
	level, err := log.ParseLevel(levelName)
	if err != nil {
		return nil, cli.Exit(err.Error(), exitError)
	}
	stderr := &syncWriter{w: c.App.ErrWriter}
	logger := log.NewLoggerWithWriter(stderr, level)

	address := cfg.Dashboard.URL
	if c.IsSet("address") {
		address = c.String("address")
	}
	if address == "" {
		address = dashboard.DefaultURL
	}

	opts := []dashboard.Option{dashboard.WithLogger(logger)}
	if cfg.Dashboard.UserAgent != "" {
		opts = append(opts, dashboard.WithUserAgent(cfg.Dashboard.UserAgent))
	}
	if cfg.Dashboard.Timeout.Duration > 0 {
		opts = append(opts, dashboard.WithTimeout(cfg.Dashboard.Timeout.Duration))
	}
	client, err := dashboard.New(address, opts...)
	if err != nil {
		return nil, cli.Exit(err.Error(), exitError)
	}

	backend := cfg.Packages.Backend
	if backend == "" {
		backend = config.BackendDashboard
	}

	statePath, err := state.DefaultPath()
	if err != nil {
		return nil, err
	}

	metricsPath := cfg.Metrics.Textfile
	if c.IsSet("metrics-textfile") {
		metricsPath = c.String("metrics-textfile")
	}

	return &env{
		cfg:         cfg,
		logger:      logger,
		metrics:     metrics.NewCollector(client.BaseURL(), backend),
		client:      client,
		state:       &state.Store{Path: statePath},
		stderr:      stderr,
		metricsPath: metricsPath,
	}, nil
}

// syncWriter serializes writes from the log tail, progress lines and the
// logger onto one stderr.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// rayjobHome joins name onto ~/.rayjob.
func rayjobHome(name string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ".rayjob", name), nil
}

// coordinator builds the package upload coordinator for the configured
// backend. backendOverride, when set, replaces packages.backend.
func (e *env) coordinator(ctx context.Context, backendOverride string) (*packages.Coordinator, error) {
	backend := e.cfg.Packages.Backend
	if backendOverride != "" {
		backend = backendOverride
	}

	var store packages.Store
	switch backend {
	case "", config.BackendDashboard:
		store = e.client
	case config.BackendS3:
		s3Store, err := packages.OpenS3Store(ctx, e.cfg.Packages.S3)
		if err != nil {
			return nil, err
		}
		store = s3Store
	default:
		return nil, fmt.Errorf("unknown packages backend %q (must be dashboard or s3)", backend)
	}

	opts := []packages.Option{packages.WithLogger(e.logger), packages.WithMetrics(e.metrics)}
	if e.cfg.Packages.TempDir != "" {
		opts = append(opts, packages.WithTempDir(e.cfg.Packages.TempDir))
	}
	return packages.NewCoordinator(store, opts...), nil
}

// journal opens the configured submission journal, or returns nil when it
// is disabled.
func (e *env) journal(ctx context.Context) (*journal.Journal, error) {
	switch e.cfg.Journal.Backend {
	case config.BackendNone:
		return nil, nil
	case config.BackendS3:
		return journal.NewS3(ctx, e.cfg.Journal.S3)
	case "", config.BackendFS:
		root := e.cfg.Journal.Path
		if root == "" {
			var err error
			if root, err = rayjobHome("journal"); err != nil {
				return nil, err
			}
		}
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
		return journal.NewFS(root)
	default:
		return nil, fmt.Errorf("unknown journal backend %q", e.cfg.Journal.Backend)
	}
}

// adapter builds the configured completion adapter, or nil.
func (e *env) adapter() (adapter.Adapter, error) {
	a := e.cfg.Adapter
	retries := -1
	if a.Retries != nil {
		retries = *a.Retries
	}

	switch a.Type {
	case "":
		return nil, nil
	case "webhook":
		if retries < 0 {
			retries = webhook.DefaultRetries
		}
		return webhook.New(webhook.Config{URL: a.URL, Headers: a.Headers, Timeout: a.Timeout.Duration, Retries: retries})
	case "redis":
		if retries < 0 {
			retries = redisadapter.DefaultRetries
		}
		return redisadapter.New(redisadapter.Config{URL: a.URL, Channel: a.Channel, Timeout: a.Timeout.Duration, Retries: retries})
	case "nats":
		if retries < 0 {
			retries = natsadapter.DefaultRetries
		}
		return natsadapter.New(natsadapter.Config{URL: a.URL, Subject: a.Channel, Timeout: a.Timeout.Duration, Retries: retries})
	default:
		return nil, fmt.Errorf("unknown adapter type %q", a.Type)
	}
}

// manager builds a job manager. With hooks, the journal and adapter are
// attached; failures to open them are logged and the hook is skipped.
func (e *env) manager(ctx context.Context, coord *packages.Coordinator, hooks bool) *jobs.Manager {
	opts := []jobs.Option{jobs.WithLogger(e.logger), jobs.WithMetrics(e.metrics)}
	if coord != nil {
		opts = append(opts, jobs.WithUploader(coord))
	}
	if !hooks {
		return jobs.NewManager(e.client, opts...)
	}

	if j, err := e.journal(ctx); err != nil {
		e.logger.Warn("journal disabled", map[string]any{"error": err})
	} else if j != nil {
		opts = append(opts, jobs.WithJournal(j))
	}

	if a, err := e.adapter(); err != nil {
		e.logger.Warn("adapter disabled", map[string]any{"error": err})
	} else if a != nil {
		opts = append(opts, jobs.WithAdapter(a))
		e.closers = append(e.closers, a.Close)
	}
	return jobs.NewManager(e.client, opts...)
}

// close releases hooks and writes the metrics textfile.
func (e *env) close() error {
	var errs []error
	for _, fn := range e.closers {
		errs = append(errs, fn())
	}
	if e.metricsPath != "" {
		errs = append(errs, e.metrics.WritePrometheusTextfile(e.metricsPath))
	}
	_ = e.logger.Sync()
	return errors.Join(errs...)
}
