package launch

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/n1ntencube/CubicLauncher/events"
	"github.com/n1ntencube/CubicLauncher/install"
	"github.com/n1ntencube/CubicLauncher/logging"
)

const (
	StreamStdout = "stdout"
	StreamStderr = "stderr"

	DefaultLineBuffer = 256
)

type Line struct {
	Stream string
	Text   string
}

type Config struct {
	Events events.Emitter
	Logger logging.Logger
	// LineBuffer sizes each process's line channel. Lines that do not fit
	// are dropped from the channel but still published as events.
	LineBuffer int
	// Command builds the command; tests swap in a helper process.
	Command func(name string, args ...string) *exec.Cmd
}

type Launcher struct {
	cfg Config
	log logging.Logger

	mu   sync.Mutex
	last *Process
}

func New(cfg Config) *Launcher {
	if cfg.Events == nil {
		cfg.Events = events.Discard
	}

	if cfg.LineBuffer <= 0 {
		cfg.LineBuffer = DefaultLineBuffer
	}

	if cfg.Command == nil {
		cfg.Command = exec.Command
	}

	return &Launcher{cfg: cfg, log: logging.With(cfg.Logger)}
}

// Process is a running game. Lines is closed once both output streams end;
// Done is closed after the process has been reaped.
type Process struct {
	ID  string
	PID int

	cmd   *exec.Cmd
	lines chan Line
	errc  chan error
	done  chan struct{}

	mu       sync.Mutex
	exitCode int
	dropped  int
}

func (p *Process) Lines() <-chan Line { return p.lines }

// Err delivers at most one error if the process could not be waited on.
func (p *Process) Err() <-chan error { return p.errc }

func (p *Process) Done() <-chan struct{} { return p.done }

// ExitCode is valid after Done is closed. A signal-terminated process
// reports -1.
func (p *Process) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.exitCode
}

func (p *Process) Wait(ctx context.Context) (int, error) {
	select {
	case <-p.done:
		return p.ExitCode(), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Kill asks the process to terminate. It does not wait for it to exit.
func (p *Process) Kill() error {
	select {
	case <-p.done:
		return ErrNotRunning
	default:
	}

	return terminate(p.cmd.Process)
}

// Start spawns the game detached from the launcher and begins pumping its
// output.
func (l *Launcher) Start(lc install.LaunchConfig) (*Process, error) {
	sep := string(filepath.ListSeparator)
	cmd := l.cfg.Command(lc.JavaPath, lc.Args(sep)...)
	cmd.Dir = lc.GameDir
	cmd.SysProcAttr = detachAttr()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Path: lc.JavaPath, Err: err}
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &SpawnError{Path: lc.JavaPath, Err: err}
	}

	l.log.Info("starting game",
		logging.F("java", lc.JavaPath),
		logging.F("player", lc.Profile.Name),
		logging.F("mod_loader", lc.ModLoader))
	l.log.Debug("game arguments", logging.F("args", lc.Redacted(sep)))

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Path: lc.JavaPath, Err: err}
	}

	p := &Process{
		ID:    uuid.NewString(),
		PID:   cmd.Process.Pid,
		cmd:   cmd,
		lines: make(chan Line, l.cfg.LineBuffer),
		errc:  make(chan error, 1),
		done:  make(chan struct{}),
	}

	l.mu.Lock()
	l.last = p
	l.mu.Unlock()

	_ = l.cfg.Events.Emit(events.GameStarted{Base: events.Now(), ProcessID: p.ID, PID: p.PID})

	go l.supervise(p, stdout, stderr)

	return p, nil
}

func (l *Launcher) supervise(p *Process, stdout, stderr io.Reader) {
	var g errgroup.Group
	g.Go(func() error { return l.pump(p, StreamStdout, stdout) })
	g.Go(func() error { return l.pump(p, StreamStderr, stderr) })

	pumpErr := g.Wait()
	close(p.lines)

	waitErr := p.cmd.Wait()

	code := 0
	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
	case errors.As(waitErr, &exitErr):
		code = exitErr.ExitCode()
	default:
		code = -1
		l.fail(p, waitErr)
	}

	if pumpErr != nil {
		l.log.Warn("game output read failed", logging.F("process", p.ID), logging.Err(pumpErr))
	}

	p.mu.Lock()
	p.exitCode = code
	dropped := p.dropped
	p.mu.Unlock()

	l.log.Info("game exited",
		logging.F("process", p.ID),
		logging.F("code", code),
		logging.F("dropped_lines", dropped))
	_ = l.cfg.Events.Emit(events.GameExited{Base: events.Now(), ProcessID: p.ID, Code: code, Crashed: code != 0})

	close(p.done)
}

func (l *Launcher) fail(p *Process, err error) {
	l.log.Error("game process failed", logging.F("process", p.ID), logging.Err(err))

	select {
	case p.errc <- err:
	default:
	}

	_ = l.cfg.Events.Emit(events.GameError{Base: events.Now(), ProcessID: p.ID, Err: err})
}

func (l *Launcher) pump(p *Process, stream string, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for sc.Scan() {
		line := Line{Stream: stream, Text: sc.Text()}

		select {
		case p.lines <- line:
		default:
			p.mu.Lock()
			p.dropped++
			p.mu.Unlock()
		}

		_ = l.cfg.Events.Emit(events.GameOutput{Base: events.Now(), ProcessID: p.ID, Stream: stream, Line: line.Text})
	}

	if err := sc.Err(); err != nil {
		// keep the pipe drained so the game never blocks on a full buffer
		_, _ = io.Copy(io.Discard, r)
		return err
	}

	return nil
}

// Last returns the most recently started process, if any.
func (l *Launcher) Last() *Process {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.last
}

// KillLast terminates the most recently started process.
func (l *Launcher) KillLast() error {
	p := l.Last()
	if p == nil {
		return ErrNotRunning
	}

	return p.Kill()
}
