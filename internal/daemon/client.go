package daemon

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"time"

	"github.com/aman-cerp/smgrep/internal/storeid"
	"github.com/aman-cerp/smgrep/pkg/version"
)

const (
	spawnRetryCount = 50
	spawnRetryDelay = 100 * time.Millisecond
	dialTimeout     = 2 * time.Second
)

// Client is a connection to one store's daemon, after a successful Hello
// handshake.
type Client struct {
	conn net.Conn
}

// Connect returns a Client talking to a daemon for root/id, spawning one in
// the background if none is listening yet, and force-respawning it if the
// one it finds answers with a mismatched build id.
func Connect(ctx context.Context, root string, id storeid.ID) (*Client, error) {
	paths := ResolvePaths(id)

	if c, err := tryConnectExisting(ctx, paths.SocketPath); err != nil {
		return nil, err
	} else if c != nil {
		return c, nil
	}

	if err := spawnDaemon(root); err != nil {
		return nil, fmt.Errorf("spawn daemon: %w", err)
	}

	return waitForDaemon(ctx, paths.SocketPath)
}

// Dial connects to an already-running daemon for root/id without spawning
// one, returning nil (no error) if none is listening or it answers with a
// mismatched build id. Used by callers like "stop" that must never bring a
// daemon up just to ask it to shut down.
func Dial(ctx context.Context, root string, id storeid.ID) (*Client, error) {
	paths := ResolvePaths(id)
	return tryConnectExisting(ctx, paths.SocketPath)
}

// spawnDaemon starts a daemon for root, preferring a standalone smgrepd
// binary on PATH (the deployable daemon-only packaging) and falling back to
// re-invoking the running executable's own "serve" subcommand, which is how
// a single combined smgrep binary provides the same functionality.
func spawnDaemon(root string) error {
	exe, args := daemonCommand(root)
	cmd := exec.Command(exe, args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Start()
}

func daemonCommand(root string) (string, []string) {
	if path, err := exec.LookPath("smgrepd"); err == nil {
		return path, []string{"--path", root}
	}
	exe, err := os.Executable()
	if err != nil {
		exe = "smgrep"
	}
	return exe, []string{"serve", "--path", root}
}

func waitForDaemon(ctx context.Context, socketPath string) (*Client, error) {
	timer := time.NewTimer(spawnRetryDelay)
	defer timer.Stop()

	for i := 0; i < spawnRetryCount; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
		if c, err := tryConnectExisting(ctx, socketPath); err == nil && c != nil {
			return c, nil
		}
		timer.Reset(spawnRetryDelay)
	}
	return nil, fmt.Errorf("daemon did not start with a matching build id")
}

// tryConnectExisting dials socketPath and performs the Hello handshake. A
// mismatched build id forces the stale daemon to shut down and returns nil
// so the caller spawns a fresh one; a dial failure also returns nil, not an
// error, since "nothing is listening yet" is an expected condition here.
func tryConnectExisting(ctx context.Context, socketPath string) (*Client, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, nil
	}

	c := &Client{conn: conn}
	ok, err := c.handshake()
	if err != nil {
		conn.Close()
		return nil, nil
	}
	if !ok {
		forceShutdown(conn, socketPath)
		return nil, nil
	}
	return c, nil
}

func (c *Client) handshake() (bool, error) {
	if err := writeFrame(c.conn, Request{Type: RequestHello, BuildID: version.BuildID()}); err != nil {
		return false, err
	}
	var resp Response
	if err := readFrame(c.conn, &resp); err != nil {
		return false, err
	}
	if resp.Type != ResponseHello {
		return false, fmt.Errorf("unexpected response to hello: %s", resp.Type)
	}
	return resp.BuildID == version.BuildID(), nil
}

// forceShutdown asks a daemon to shut down and unconditionally removes its
// socket file afterward, in case the daemon is wedged and never replies.
func forceShutdown(conn net.Conn, socketPath string) {
	_ = writeFrame(conn, Request{Type: RequestShutdown})
	var resp Response
	_ = readFrame(conn, &resp)
	_ = conn.Close()
	_ = os.Remove(socketPath)
}

// Search sends a Search request and returns its response payload.
func (c *Client) Search(query string, limit int, pathFilter string, rerank bool) (*SearchResponse, error) {
	req := Request{Type: RequestSearch, Query: query, Limit: uint32(limit), Path: pathFilter, Rerank: rerank}
	if err := writeFrame(c.conn, req); err != nil {
		return nil, err
	}
	var resp Response
	if err := readFrame(c.conn, &resp); err != nil {
		return nil, err
	}
	if resp.Type == ResponseError {
		return nil, fmt.Errorf("daemon: %s", resp.Message)
	}
	return resp.Search, nil
}

// Health sends a Health request and returns the daemon's status.
func (c *Client) Health() (*ServerStatus, error) {
	if err := writeFrame(c.conn, Request{Type: RequestHealth}); err != nil {
		return nil, err
	}
	var resp Response
	if err := readFrame(c.conn, &resp); err != nil {
		return nil, err
	}
	if resp.Type == ResponseError {
		return nil, fmt.Errorf("daemon: %s", resp.Message)
	}
	return resp.Status, nil
}

// Shutdown asks the daemon to drain and exit.
func (c *Client) Shutdown() error {
	if err := writeFrame(c.conn, Request{Type: RequestShutdown}); err != nil {
		return err
	}
	var resp Response
	return readFrame(c.conn, &resp)
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
