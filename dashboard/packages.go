package dashboard

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/justapithecus/rayjob/iox"
	"github.com/justapithecus/rayjob/types"
)

func packagePath(protocol, name string) (string, error) {
	if protocol == "" || name == "" {
		return "", fmt.Errorf("%w: package protocol and name are required", types.ErrValidation)
	}
	return "/api/packages/" + url.PathEscape(protocol) + "/" + url.PathEscape(name), nil
}

// PackageExists reports whether the dashboard holds the named package.
// 200 means present, 404 absent; any other status is an error.
func (c *Client) PackageExists(ctx context.Context, protocol, name string) (bool, error) {
	path, err := packagePath(protocol, name)
	if err != nil {
		return false, err
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return false, err
	}
	resp, err := c.do(req, http.StatusNotFound)
	if err != nil {
		return false, err
	}
	defer iox.DrainClose(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, &StatusError{Method: req.Method, Path: path, Code: resp.StatusCode}
	}
	return true, nil
}

// UploadPackage stores raw package bytes under protocol/name.
func (c *Client) UploadPackage(ctx context.Context, protocol, name string, data []byte) error {
	path, err := packagePath(protocol, name)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPut, path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	iox.DrainClose(resp.Body)

	c.logger.Debug("package uploaded", map[string]any{"protocol": protocol, "name": name, "bytes": len(data)})
	return nil
}

// Exists implements packages.Store.
func (c *Client) Exists(ctx context.Context, protocol, name string) (bool, error) {
	return c.PackageExists(ctx, protocol, name)
}

// Put implements packages.Store.
func (c *Client) Put(ctx context.Context, protocol, name string, data []byte) error {
	return c.UploadPackage(ctx, protocol, name, data)
}
