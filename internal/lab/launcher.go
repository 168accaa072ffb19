// launcher.go - Supervision of the external server and viewer processes.
//
// Everything podlab runs is an unmodified third-party tool invoked
// through its documented command line. The launcher owns process
// lifecycle only: spawn, stream output into the log, stop gracefully.
package lab

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// tailLines is how many trailing output lines are kept for error
// reporting when a one-shot process fails.
const tailLines = 20

// ProcessSpec describes one external process invocation.
type ProcessSpec struct {
	Name    string   // tag used in log output, e.g. "server", "viewer"
	Command string   // binary looked up on PATH
	Args    []string
	Dir     string   // working directory, empty for inherited
	Env     []string // extra environment entries, KEY=VALUE
}

// Process is a running external process. Output is streamed into the
// logger line by line while the process runs.
type Process struct {
	spec ProcessSpec
	cmd  *exec.Cmd
	log  *zap.Logger

	mu   sync.Mutex
	tail []string

	done chan struct{}
	err  error
}

// Launcher starts and supervises external processes.
type Launcher struct {
	log *zap.Logger
}

// NewLauncher returns a Launcher logging through log.
func NewLauncher(log *zap.Logger) *Launcher {
	return &Launcher{log: log}
}

// ErrPortInUse is returned by CheckPortFree when something is already
// listening on the requested port.
var ErrPortInUse = errors.New("port already in use")

// CheckPortFree verifies nothing is listening on the local port before
// a listener process is spawned, so a conflict surfaces as our own
// diagnostic instead of a confusing external-tool failure.
func CheckPortFree(port int) error {
	addr := fmt.Sprintf("localhost:%d", port)
	conn, err := net.DialTimeout("tcp", addr, 250*time.Millisecond)
	if err == nil {
		_ = conn.Close()
		return fmt.Errorf("%w: %s", ErrPortInUse, addr)
	}
	return nil
}

// Start spawns the process and begins streaming its output. The
// returned Process keeps running after ctx is cancelled only until
// Shutdown or Wait observes the cancellation.
func (l *Launcher) Start(ctx context.Context, spec ProcessSpec) (*Process, error) {
	if spec.Command == "" {
		return nil, errors.New("launcher: empty command")
	}

	cmd := exec.CommandContext(ctx, spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(cmd.Environ(), spec.Env...)
	}
	// Let us signal the process ourselves before the context kill fires.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGINT)
	}
	cmd.WaitDelay = 10 * time.Second

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("launcher: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("launcher: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launcher: start %s: %w", spec.Command, err)
	}

	p := &Process{
		spec: spec,
		cmd:  cmd,
		log:  l.log.With(zap.String("process", spec.Name), zap.Int("pid", cmd.Process.Pid)),
		done: make(chan struct{}),
	}
	p.log.Info("process started",
		zap.String("command", spec.Command),
		zap.Strings("args", spec.Args))

	var scanners sync.WaitGroup
	scanners.Add(2)
	go p.scan(stdout, &scanners, false)
	go p.scan(stderr, &scanners, true)

	go func() {
		scanners.Wait()
		err := cmd.Wait()
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		close(p.done)
		if err != nil {
			p.log.Warn("process exited", zap.Error(err))
		} else {
			p.log.Info("process exited")
		}
	}()

	return p, nil
}

// Run executes a one-shot process (a package-manager install, a config
// script) and waits for it to finish. On failure the error carries the
// last lines of output so the operator sees the external tool's own
// diagnostic.
func (l *Launcher) Run(ctx context.Context, spec ProcessSpec) error {
	p, err := l.Start(ctx, spec)
	if err != nil {
		return err
	}
	if err := p.Wait(); err != nil {
		tail := p.Tail()
		if tail != "" {
			return fmt.Errorf("%s failed: %w\n%s", spec.Name, err, tail)
		}
		return fmt.Errorf("%s failed: %w", spec.Name, err)
	}
	return nil
}

func (p *Process) scan(r io.Reader, wg *sync.WaitGroup, isErr bool) {
	defer wg.Done()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		p.mu.Lock()
		p.tail = append(p.tail, line)
		if len(p.tail) > tailLines {
			p.tail = p.tail[len(p.tail)-tailLines:]
		}
		p.mu.Unlock()
		if isErr {
			p.log.Warn(line)
		} else {
			p.log.Info(line)
		}
	}
}

// Wait blocks until the process exits and returns its error, if any.
func (p *Process) Wait() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Done returns a channel closed when the process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Exited reports whether the process has already exited.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Tail returns the last captured lines of output.
func (p *Process) Tail() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.Join(p.tail, "\n")
}

// Shutdown asks the process to stop with SIGINT and escalates to
// SIGKILL when ctx expires before it exits.
func (p *Process) Shutdown(ctx context.Context) error {
	if p.Exited() {
		return nil
	}
	p.log.Info("stopping process")
	if err := p.cmd.Process.Signal(syscall.SIGINT); err != nil {
		// Already gone.
		<-p.done
		return nil
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		p.log.Warn("process did not stop in time, killing")
		_ = p.cmd.Process.Kill()
		<-p.done
		return ctx.Err()
	}
}
