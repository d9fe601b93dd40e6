package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/justapithecus/rayjob/iox"
	"github.com/justapithecus/rayjob/types"
)

// TailJobLogs streams a job's logs over the dashboard websocket, passing
// each text frame to fn. It returns nil when the server closes the stream
// normally, and ctx.Err() when ctx is cancelled first.
func (c *Client) TailJobLogs(ctx context.Context, id string, fn func(chunk string) error) error {
	path, err := jobPath(id, "/logs/tail")
	if err != nil {
		return err
	}

	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	// path is already escaped; join it like endpoint does so an escaped
	// base path is kept as is.
	target := u.String() + path

	header := http.Header{}
	header.Set("User-Agent", c.userAgent)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, header)
	if resp != nil && resp.Body != nil {
		defer iox.DrainClose(resp.Body)
	}
	if err != nil {
		if resp != nil {
			return &StatusError{Method: http.MethodGet, Path: path, Code: resp.StatusCode}
		}
		return fmt.Errorf("%w: dial %s: %w", types.ErrTransport, path, err)
	}
	defer iox.DiscardClose(conn)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				if closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway {
					return nil
				}
				return fmt.Errorf("%w: tail %s: %w", types.ErrTransport, id, err)
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				c.logger.Debug("log tail ended without close frame", map[string]any{"submission_id": id})
				return nil
			}
			return fmt.Errorf("%w: tail %s: %w", types.ErrTransport, id, err)
		}
		if kind != websocket.TextMessage {
			continue
		}
		if err := fn(string(data)); err != nil {
			return err
		}
	}
}
