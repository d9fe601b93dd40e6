// Package packages ensures content-addressed packages exist exactly once on
// a remote store.
//
// The Coordinator checks for a package before uploading it, so redundant
// callers across processes do not repeat the transfer. Two callers racing on
// the same absent package may both upload; the content is identical, so the
// second write is a harmless overwrite. Nothing here retries.
package packages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/justapithecus/rayjob/iox"
	"github.com/justapithecus/rayjob/log"
	"github.com/justapithecus/rayjob/metrics"
	"github.com/justapithecus/rayjob/packaging"
	"github.com/justapithecus/rayjob/types"
)

// Store is the remote package surface.
type Store interface {
	Exists(ctx context.Context, protocol, name string) (bool, error)
	Put(ctx context.Context, protocol, name string, data []byte) error
}

// Coordinator uploads packages to a Store at most once per content identity.
// It holds no per-call state and is safe for concurrent use.
type Coordinator struct {
	store   Store
	builder *packaging.Builder
	metrics *metrics.Collector
	logger  *log.Logger
	tempDir string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger attaches a logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithMetrics records upload counters.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithTempDir sets where intermediate archives are written.
// Defaults to os.TempDir().
func WithTempDir(dir string) Option {
	return func(c *Coordinator) { c.tempDir = dir }
}

// NewCoordinator creates a Coordinator over store.
func NewCoordinator(store Store, opts ...Option) *Coordinator {
	c := &Coordinator{store: store}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "packages")
	c.builder = packaging.New(c.logger)
	if c.tempDir == "" {
		c.tempDir = os.TempDir()
	}
	return c
}

// Exists reports whether the package named by uri is present.
func (c *Coordinator) Exists(ctx context.Context, uri string) (bool, error) {
	protocol, name, err := packaging.ParseURI(uri)
	if err != nil {
		return false, err
	}
	ok, err := c.store.Exists(ctx, protocol, name)
	if err != nil {
		c.metrics.IncUploadFailed()
		return false, fmt.Errorf("check package %s: %w", uri, err)
	}
	return ok, nil
}

// Upload stores data under uri unconditionally.
func (c *Coordinator) Upload(ctx context.Context, uri string, data []byte) error {
	protocol, name, err := packaging.ParseURI(uri)
	if err != nil {
		return err
	}
	if err := c.store.Put(ctx, protocol, name, data); err != nil {
		c.metrics.IncUploadFailed()
		return fmt.Errorf("upload package %s: %w", uri, err)
	}
	c.metrics.IncUploadPerformed(len(data))
	c.logger.Info("package uploaded", map[string]any{"uri": uri, "bytes": len(data)})
	return nil
}

// UploadIfNeeded uploads data only when uri is absent. It reports whether
// an upload happened.
func (c *Coordinator) UploadIfNeeded(ctx context.Context, uri string, data []byte) (bool, error) {
	exists, err := c.Exists(ctx, uri)
	if err != nil {
		return false, err
	}
	if exists {
		c.metrics.IncUploadSkipped()
		c.logger.Debug("package already present", map[string]any{"uri": uri})
		return false, nil
	}
	if err := c.Upload(ctx, uri, data); err != nil {
		return false, err
	}
	return true, nil
}

// UploadDirectory packages dir and uploads it unconditionally.
func (c *Coordinator) UploadDirectory(ctx context.Context, dir string) (string, error) {
	uri, err := c.builder.URIForDirectory(dir)
	if err != nil {
		return "", err
	}
	if err := c.uploadArchive(ctx, dir, uri); err != nil {
		return "", err
	}
	return uri, nil
}

// UploadDirectoryIfNeeded packages dir and uploads it when its content
// identity is absent from the store. It returns the package URI either way.
func (c *Coordinator) UploadDirectoryIfNeeded(ctx context.Context, dir string) (string, error) {
	uri, err := c.builder.URIForDirectory(dir)
	if err != nil {
		return "", err
	}

	exists, err := c.Exists(ctx, uri)
	if err != nil {
		return "", err
	}
	if exists {
		c.metrics.IncUploadSkipped()
		c.logger.Debug("package already present", map[string]any{"uri": uri, "dir": dir})
		return uri, nil
	}

	if err := c.uploadArchive(ctx, dir, uri); err != nil {
		return "", err
	}
	return uri, nil
}

// UploadPackageFile uploads a pre-built artifact such as a wheel and returns
// its URI.
func (c *Coordinator) UploadPackageFile(ctx context.Context, path string) (string, error) {
	uri, err := c.builder.URIForPackage(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", types.NewError(types.ErrIO, "read package", path, err)
	}
	if err := c.Upload(ctx, uri, data); err != nil {
		return "", err
	}
	return uri, nil
}

// uploadArchive builds dir into a uniquely named temp archive, uploads it
// and removes the archive on every path.
func (c *Coordinator) uploadArchive(ctx context.Context, dir, uri string) (err error) {
	tmp := filepath.Join(c.tempDir, "ray_pkg_"+uuid.NewString()+".zip")
	defer func() {
		if rmErr := iox.RemoveIfExists(tmp); rmErr != nil {
			c.logger.Warn("failed to remove temp archive", map[string]any{"path": tmp, "error": rmErr})
			if err == nil {
				err = types.NewError(types.ErrIO, "cleanup", tmp, rmErr)
			}
		}
	}()

	if err := c.builder.CreatePackage(dir, tmp); err != nil {
		return err
	}
	data, err := os.ReadFile(tmp)
	if err != nil {
		return types.NewError(types.ErrIO, "read archive", tmp, err)
	}
	return c.Upload(ctx, uri, data)
}
