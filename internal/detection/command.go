package detection

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/mesler1/dadcam/internal/logging"
)

const (
	defaultStartupTimeout = 60 * time.Second
	defaultMaxRestarts    = 3
	workerStopTimeout     = 5 * time.Second
	maxResponseLine       = 4 << 20
	stderrTailBytes       = 2048
)

// CommandOptions configures the detector worker process.
//
// The worker is started as:
//
//	<Command> --serve --model <Model> --model-dir <ModelDir>
//
// and must print one handshake line, {"ready":true,"model":"..."} or
// {"ready":false,"error":"..."}. After that it reads one request per line,
// {"path":"/abs/file"}, and answers each with one response line,
// {"detections":[{"label":"dog","confidence":0.81}],"error":""}.
type CommandOptions struct {
	Command        string
	Model          string
	ModelDir       string
	StartupTimeout time.Duration
	// MaxRestarts bounds how often a worker that died mid-run is relaunched.
	MaxRestarts int
}

type handshake struct {
	Ready bool   `json:"ready"`
	Model string `json:"model"`
	Error string `json:"error"`
}

type request struct {
	Path string `json:"path"`
}

type response struct {
	Detections []Hit  `json:"detections"`
	Error      string `json:"error"`
}

// CommandBackend drives an external detector worker.
type CommandBackend struct {
	opts    CommandOptions
	logger  *slog.Logger
	scratch string

	mu       sync.Mutex
	proc     *workerProcess
	restarts int
}

// NewCommandBackend constructs a backend; the worker is not started until Start.
func NewCommandBackend(opts CommandOptions, logger *slog.Logger) *CommandBackend {
	if opts.StartupTimeout <= 0 {
		opts.StartupTimeout = defaultStartupTimeout
	}
	if opts.MaxRestarts < 0 {
		opts.MaxRestarts = 0
	} else if opts.MaxRestarts == 0 {
		opts.MaxRestarts = defaultMaxRestarts
	}
	return &CommandBackend{
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "detector").With(logging.String("model", opts.Model)),
	}
}

// Name implements Backend.
func (b *CommandBackend) Name() string {
	return "command:" + b.opts.Model
}

// Start launches the worker and waits for its handshake.
func (b *CommandBackend) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.startLocked(ctx)
}

func (b *CommandBackend) startLocked(ctx context.Context) error {
	if b.scratch == "" {
		dir, err := os.MkdirTemp("", "dadcam-frames-")
		if err != nil {
			return fmt.Errorf("create frame scratch dir: %w", err)
		}
		b.scratch = dir
	}
	proc, err := startWorker(ctx, b.opts)
	if err != nil {
		return err
	}
	b.proc = proc
	b.logger.Info("detector worker ready",
		logging.String(logging.FieldEventType, "detector_ready"),
		logging.Int("pid", proc.cmd.Process.Pid),
	)
	return nil
}

// Detect implements Backend.
func (b *CommandBackend) Detect(ctx context.Context, in Input) ([]Hit, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.proc == nil || b.proc.exited() {
		if b.proc != nil {
			b.proc.kill()
			b.proc = nil
		}
		if b.restarts >= b.opts.MaxRestarts {
			return nil, errors.New("detector worker unavailable: restart limit reached")
		}
		b.restarts++
		logging.WarnWithContext(b.logger, "detector worker restarting", "detector_restart",
			logging.Int("attempt", b.restarts),
			logging.String(logging.FieldImpact, "the previous file was marked as a detection error"),
			logging.String(logging.FieldErrorHint, "check the detector worker log output"),
		)
		if err := b.startLocked(ctx); err != nil {
			return nil, err
		}
	}

	path := in.Path
	if path == "" {
		if in.Image == nil {
			return nil, errors.New("detector input has neither path nor image")
		}
		framePath, err := b.writeFrame(in)
		if err != nil {
			return nil, err
		}
		defer os.Remove(framePath)
		path = framePath
	}

	resp, err := b.proc.call(ctx, request{Path: path})
	if err != nil {
		if b.proc.exited() || ctx.Err() != nil {
			b.proc.kill()
			b.proc = nil
		}
		return nil, err
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}
	return resp.Detections, nil
}

func (b *CommandBackend) writeFrame(in Input) (string, error) {
	file, err := os.CreateTemp(b.scratch, "frame-*.png")
	if err != nil {
		return "", fmt.Errorf("create frame file: %w", err)
	}
	if err := png.Encode(file, in.Image); err != nil {
		file.Close()
		os.Remove(file.Name())
		return "", fmt.Errorf("encode frame: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(file.Name())
		return "", fmt.Errorf("write frame: %w", err)
	}
	return file.Name(), nil
}

// Close stops the worker and removes scratch files.
func (b *CommandBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	if b.proc != nil {
		err = b.proc.stop()
		b.proc = nil
	}
	if b.scratch != "" {
		if rmErr := os.RemoveAll(b.scratch); rmErr != nil && err == nil {
			err = rmErr
		}
		b.scratch = ""
	}
	return err
}

type workerProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	enc    *json.Encoder
	lines  chan []byte
	done   chan struct{}
	quit   chan struct{}
	stderr *tailBuffer

	once sync.Once
}

func startWorker(ctx context.Context, opts CommandOptions) (*workerProcess, error) {
	command := strings.TrimSpace(opts.Command)
	if command == "" {
		return nil, errors.New("detector command not configured")
	}
	args := []string{"--serve", "--model", opts.Model}
	if opts.ModelDir != "" {
		args = append(args, "--model-dir", opts.ModelDir)
	}
	cmd := exec.Command(command, args...)
	stderr := &tailBuffer{limit: stderrTailBytes}
	cmd.Stderr = stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("detector stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("detector stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start detector %q: %w", command, err)
	}

	proc := &workerProcess{
		cmd:    cmd,
		stdin:  stdin,
		enc:    json.NewEncoder(stdin),
		lines:  make(chan []byte),
		done:   make(chan struct{}),
		quit:   make(chan struct{}),
		stderr: stderr,
	}
	go proc.readLoop(stdout)

	startCtx, cancel := context.WithTimeout(ctx, opts.StartupTimeout)
	defer cancel()
	line, err := proc.next(startCtx)
	if err != nil {
		proc.kill()
		return nil, fmt.Errorf("detector %s handshake: %w", opts.Model, err)
	}
	var hs handshake
	if err := json.Unmarshal(line, &hs); err != nil {
		proc.kill()
		return nil, fmt.Errorf("detector %s handshake: invalid response %q: %w", opts.Model, line, err)
	}
	if !hs.Ready {
		proc.kill()
		msg := hs.Error
		if msg == "" {
			msg = "worker reported not ready"
		}
		return nil, fmt.Errorf("detector %s: %s", opts.Model, msg)
	}
	return proc, nil
}

func (p *workerProcess) readLoop(stdout io.Reader) {
	defer close(p.done)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxResponseLine)
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		select {
		case p.lines <- line:
		case <-p.quit:
			return
		}
	}
}

func (p *workerProcess) next(ctx context.Context) ([]byte, error) {
	select {
	case line := <-p.lines:
		return line, nil
	case <-p.done:
		return nil, p.exitError()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *workerProcess) call(ctx context.Context, req request) (response, error) {
	if err := p.enc.Encode(req); err != nil {
		return response{}, fmt.Errorf("send to detector: %w", err)
	}
	line, err := p.next(ctx)
	if err != nil {
		return response{}, err
	}
	var resp response
	if err := json.Unmarshal(line, &resp); err != nil {
		return response{}, fmt.Errorf("decode detector response: %w", err)
	}
	return resp, nil
}

func (p *workerProcess) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *workerProcess) exitError() error {
	if tail := strings.TrimSpace(p.stderr.String()); tail != "" {
		return fmt.Errorf("detector worker exited: %s", tail)
	}
	return errors.New("detector worker exited")
}

func (p *workerProcess) kill() {
	p.once.Do(func() {
		close(p.quit)
		_ = p.stdin.Close()
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		p.drain()
		_ = p.cmd.Wait()
	})
}

// stop closes stdin so the worker can exit cleanly, then kills it if it lingers.
func (p *workerProcess) stop() error {
	var err error
	p.once.Do(func() {
		close(p.quit)
		_ = p.stdin.Close()
		select {
		case <-p.done:
		case <-time.After(workerStopTimeout):
			_ = p.cmd.Process.Kill()
			p.drain()
		}
		err = p.cmd.Wait()
	})
	return err
}

// drain waits for the stdout reader to finish so Wait does not close the pipe
// under it.
func (p *workerProcess) drain() {
	select {
	case <-p.done:
	case <-time.After(workerStopTimeout):
	}
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
