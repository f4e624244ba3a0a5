package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// DefaultCommand plays one file or URL and exits.
var DefaultCommand = []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"}

// startupGrace is how long PlayURL and PlayData wait for an immediate
// failure before handing back the handle.
const startupGrace = 300 * time.Millisecond

// CommandPlayer plays audio through an external program. The location (or
// "-" for in-memory data on stdin) is appended to Command.
type CommandPlayer struct {
	Command []string
	BaseURL string // resolves relative clip locations
}

// PlayURL starts the player on location.
func (p CommandPlayer) PlayURL(ctx context.Context, location string) (Handle, error) {
	target, err := p.resolve(location)
	if err != nil {
		return nil, err
	}
	return p.start(target, nil)
}

// PlayData starts the player reading data from stdin.
func (p CommandPlayer) PlayData(ctx context.Context, data []byte) (Handle, error) {
	return p.start("-", data)
}

func (p CommandPlayer) resolve(location string) (string, error) {
	if p.BaseURL == "" {
		return location, nil
	}
	base, err := url.Parse(p.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parse location: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

func (p CommandPlayer) start(target string, stdin []byte) (Handle, error) {
	argv := p.Command
	if len(argv) == 0 {
		argv = DefaultCommand
	}
	args := append(append([]string(nil), argv[1:]...), target)

	// Playback outlives the request context; Stop ends it.
	cmd := exec.Command(argv[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", argv[0], err)
	}

	h := &processHandle{name: argv[0], cmd: cmd, stderr: &stderr, done: make(chan struct{})}
	go func() {
		h.err = cmd.Wait()
		close(h.done)
	}()

	// Local failures (missing file, bad args) show up at once. Later ones,
	// such as a remote 403, are reported through Err.
	select {
	case <-h.done:
		if err := h.Err(); err != nil {
			return nil, err
		}
	case <-time.After(startupGrace):
	}
	return h, nil
}

type processHandle struct {
	name   string
	cmd    *exec.Cmd
	stderr *bytes.Buffer
	done   chan struct{}
	err    error

	mu   sync.Mutex
	stop bool
}

func (h *processHandle) stopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stop
}

// Stop kills the player and waits for it to exit.
func (h *processHandle) Stop() error {
	h.mu.Lock()
	if h.stop {
		h.mu.Unlock()
		return nil
	}
	h.stop = true
	h.mu.Unlock()

	select {
	case <-h.done:
		return nil
	default:
	}
	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	<-h.done
	return nil
}

func (h *processHandle) Done() <-chan struct{} { return h.done }

// Err returns the player's failure, with its stderr when it printed any.
func (h *processHandle) Err() error {
	select {
	case <-h.done:
	default:
		return nil
	}
	if h.err == nil || h.stopped() {
		return nil
	}
	msg := strings.TrimSpace(h.stderr.String())
	if msg == "" {
		msg = h.err.Error()
	}
	return fmt.Errorf("%s exited: %s", h.name, msg)
}
