package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/rawzeo/cli/config"
	"github.com/justapithecus/rawzeo/cli/render"
	"github.com/justapithecus/rawzeo/iox"
	"github.com/justapithecus/rawzeo/runtime"
	"github.com/justapithecus/rawzeo/transport"
)

// CaptureResponse is the response for the capture command.
type CaptureResponse struct {
	Source   string `json:"source"`
	Path     string `json:"path"`
	Bytes    int64  `json:"bytes"`
	StoredAt string `json:"stored_at,omitempty"`
}

// CaptureCommand returns the capture command.
// Capture copies raw bytes from a serial port to a replay file until
// interrupted or --duration elapses. Replay files given as arguments are
// concatenated instead, which merges or imports existing captures. The file
// can optionally be uploaded next to the session's records in Lode.
func CaptureCommand() *cli.Command {
	return &cli.Command{
		Name:      "capture",
		Usage:     "Copy raw serial bytes to a replay file",
		ArgsUsage: "[replay-file...]",
		Flags: concatFlags(
			[]cli.Flag{
				ConfigFlag,
				&cli.StringFlag{Name: "session-id", Usage: "Session ID for the stored file (default: random UUID)"},
				&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Replay file to write", Required: true},
				&cli.DurationFlag{Name: "duration", Usage: "Stop after this long (default: until interrupted)"},
			},
			sourceFlags(),
			storageFlags(),
			ReadOnlyFlags(),
		),
		Action: captureAction,
	}
}

func captureAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for capture command", 1)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return configExit(err)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return configExit(err)
	}
	sources, err := transport.Open(transport.Config{
		Port:   cfg.Transport.Port,
		Baud:   cfg.Transport.Baud,
		Replay: cfg.Transport.Replay,
	})
	if err != nil {
		if errors.Is(err, transport.ErrNoSource) {
			return configExit(fmt.Errorf("%w (use --port or pass replay files)", err))
		}
		return cli.Exit(fmt.Sprintf("transport error: %v", err), runtime.ExitCodeTransportError)
	}
	defer closeSources(sources)

	path := c.String("out")
	f, err := os.Create(path)
	if err != nil {
		return configExit(err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if d := c.Duration("duration"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	startedAt := time.Now()
	var n int64
	for _, src := range sources {
		var copied int64
		copied, err = transport.Capture(ctx, src, f)
		n += copied
		if err != nil {
			break
		}
	}
	if cerr := f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	// Interrupts and the duration limit end a capture normally.
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return cli.Exit(fmt.Sprintf("capture failed after %d bytes: %v", n, err), runtime.ExitCodeTransportError)
	}

	resp := CaptureResponse{Source: describeSources(sources), Path: path, Bytes: n}
	if cfg.Storage.Path != "" {
		stored, err := storeCapture(context.WithoutCancel(ctx), c, cfg, path, startedAt)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to store capture: %v", err), runtime.ExitCodeSinkFailure)
		}
		resp.StoredAt = stored
	}
	return r.Render(resp)
}

// storeCapture uploads the replay file to the session's files/ prefix and
// returns its store path.
func storeCapture(ctx context.Context, c *cli.Context, cfg *config.Config, path string, startedAt time.Time) (string, error) {
	sessionID := c.String("session-id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	store, err := openStore(ctx, cfg, sessionID, "", startedAt)
	if err != nil {
		return "", err
	}
	defer iox.DiscardClose(store)

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	name := filepath.Base(path)
	if err := store.PutFile(ctx, name, "application/octet-stream", data); err != nil {
		return "", err
	}
	return store.FilePath(name), nil
}
