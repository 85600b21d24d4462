package proc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/vigil-dev/vigil/internal/logbus"
)

// Spec describes how to launch a child process.
type Spec struct {
	Command []string
	Dir     string
	Env     map[string]string
}

// Line is a single line of child output tagged with the pipe it arrived on.
type Line struct {
	Text   string
	Source string
}

// Handle owns a spawned child process. Output lines arrive on Lines until
// both pipes reach EOF; Done closes once the child has been reaped and its
// exit state recorded.
type Handle struct {
	name  string
	cmd   *exec.Cmd
	lines chan Line
	done  chan struct{}

	mu      sync.Mutex
	waitErr error
}

// Start spawns the described command in its own process group with the
// current environment plus the spec's overrides.
func Start(name string, spec Spec) (*Handle, error) {
	if len(spec.Command) == 0 {
		return nil, fmt.Errorf("service %s requires a command", name)
	}

	cmd := exec.Command(spec.Command[0], spec.Command[1:]...)
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}

	env := os.Environ()
	for k, v := range spec.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = env

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("service %s stdout: %w", name, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("service %s stderr: %w", name, err)
	}

	configureSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start service %s: %w", name, err)
	}

	h := &Handle{
		name:  name,
		cmd:   cmd,
		lines: make(chan Line, 64),
		done:  make(chan struct{}),
	}

	var pumps sync.WaitGroup
	pumps.Add(2)
	go h.pump(stdout, logbus.SourceStdout, &pumps)
	go h.pump(stderr, logbus.SourceStderr, &pumps)

	// All pipe reads must complete before Wait reaps the child, and Lines
	// must close before Done so drains observe every line.
	go func() {
		pumps.Wait()
		close(h.lines)
		err := cmd.Wait()
		h.mu.Lock()
		h.waitErr = err
		h.mu.Unlock()
		close(h.done)
	}()

	return h, nil
}

func (h *Handle) pump(r io.Reader, source string, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		h.lines <- Line{Text: scanner.Text(), Source: source}
	}
}

// PID returns the child's process id, or 0 before a successful spawn.
func (h *Handle) PID() int {
	if h.cmd.Process != nil {
		return h.cmd.Process.Pid
	}
	return 0
}

// Alive reports whether the child has not yet been reaped.
func (h *Handle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Lines exposes the combined stdout/stderr stream. The channel closes after
// both pipes reach EOF.
func (h *Handle) Lines() <-chan Line {
	return h.lines
}

// Done closes once the child has exited and its exit state is recorded.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// ExitErr returns the error recorded by Wait. Only meaningful after Done.
func (h *Handle) ExitErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.waitErr
}

// ExitCode returns the child's exit code, or -1 when it was terminated by a
// signal or has not exited. Only meaningful after Done.
func (h *Handle) ExitCode() int {
	if state := h.cmd.ProcessState; state != nil {
		return state.ExitCode()
	}
	return -1
}
