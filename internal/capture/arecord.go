package capture

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// openTimeout bounds how long arecord may take to deliver its first sample.
const openTimeout = 3 * time.Second

// ArecordDevice captures from an ALSA input by streaming raw PCM from arecord.
type ArecordDevice struct {
	Binary string // defaults to "arecord"
	Input  string // ALSA device name; empty means the default input
}

// Name returns the ALSA input name.
func (d ArecordDevice) Name() string {
	if d.Input == "" {
		return "default"
	}
	return d.Input
}

// Open starts arecord and waits for the first sample. A missing binary, a
// refused device, or an immediate exit all report ErrDeviceUnavailable.
func (d ArecordDevice) Open(ctx context.Context) (io.ReadCloser, error) {
	bin := d.Binary
	if bin == "" {
		bin = "arecord"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	args := []string{
		"-q",
		"-f", "S16_LE",
		"-r", strconv.Itoa(SampleRate),
		"-c", strconv.Itoa(Channels),
		"-t", "raw",
	}
	if d.Input != "" {
		args = append(args, "-D", d.Input)
	}

	cmd := exec.CommandContext(ctx, path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start arecord: %v", ErrDeviceUnavailable, err)
	}

	r := bufio.NewReaderSize(stdout, ChunkSize*4)
	killer := time.AfterFunc(openTimeout, func() { cmd.Process.Kill() })
	_, peekErr := r.Peek(1)
	killer.Stop()
	if peekErr != nil {
		cmd.Wait()
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = peekErr.Error()
		}
		return nil, fmt.Errorf("%w: %s", ErrDeviceUnavailable, msg)
	}

	return &processStream{r: r, cmd: cmd}, nil
}

// processStream reads a child process's stdout and stops it on Close.
type processStream struct {
	r    *bufio.Reader
	cmd  *exec.Cmd
	once sync.Once
}

func (p *processStream) Read(b []byte) (int, error) { return p.r.Read(b) }

// Close interrupts the process so it can flush, then kills it if it lingers.
func (p *processStream) Close() error {
	p.once.Do(func() {
		p.cmd.Process.Signal(os.Interrupt)
		waited := make(chan error, 1)
		go func() { waited <- p.cmd.Wait() }()
		select {
		case <-waited:
		case <-time.After(time.Second):
			p.cmd.Process.Kill()
			<-waited
		}
	})
	return nil
}
