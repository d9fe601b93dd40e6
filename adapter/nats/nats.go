// Package nats publishes job completion events on a NATS subject.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/justapithecus/rayjob/adapter"
)

// DefaultSubject is the default subject name.
const DefaultSubject = "rayjob.job_completed"

// DefaultTimeout bounds connecting and flushing.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// Config configures the NATS adapter.
type Config struct {
	// URL is the NATS server URL (required), e.g. nats://127.0.0.1:4222.
	URL string
	// Subject is the subject to publish on (default: rayjob.job_completed).
	Subject string
	// Timeout bounds connect and flush (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure.
	Retries int
}

// conn is the subset of *nats.Conn the adapter uses.
type conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// Adapter publishes job completion events via NATS.
type Adapter struct {
	config Config
	conn   conn
}

// New connects to NATS and creates the adapter.
func New(cfg Config) (*Adapter, error) {
	cfg, err := withDefaults(cfg)
	if err != nil {
		return nil, err
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name("rayjob"),
		nats.Timeout(cfg.Timeout),
		nats.MaxReconnects(2),
		nats.ReconnectWait(500*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("nats adapter: connect %s: %w", cfg.URL, err)
	}
	return &Adapter{config: cfg, conn: nc}, nil
}

func withDefaults(cfg Config) (Config, error) {
	if cfg.URL == "" {
		return cfg, errors.New("nats adapter requires a URL")
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return cfg, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	return cfg, nil
}

// Publish sends the event as JSON and flushes so delivery errors surface.
func (a *Adapter) Publish(ctx context.Context, event *adapter.JobCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("nats: marshal event: %w", err)
	}

	return adapter.Retry(ctx, "nats", a.config.Retries, func(ctx context.Context) error {
		if err := a.conn.Publish(a.config.Subject, body); err != nil {
			return err
		}
		timeout := a.config.Timeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = min(timeout, time.Until(deadline))
		}
		return a.conn.FlushTimeout(timeout)
	}, isPermanent)
}

func isPermanent(err error) bool {
	return errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubject) || errors.Is(err, nats.ErrMaxPayload)
}

// Close drops the connection.
func (a *Adapter) Close() error {
	a.conn.Close()
	return nil
}

var _ adapter.Adapter = (*Adapter)(nil)
