package procpool

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"go.uber.org/multierr"
)

// waitTimeout bounds how long Close waits for a worker to exit after its
// stdin is closed before killing it.
const waitTimeout = 5 * time.Second

type proc struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	enc   *json.Encoder
	dec   *json.Decoder
}

// Pool is the parent-side handle on a set of worker processes.
type Pool struct {
	procs []*proc
	log   *slog.Logger
}

// Start launches workers re-executed copies of the current binary, passes
// them the shared segment descriptors and sends each the init frame. The
// segment files are inherited in slice order starting at descriptor 3,
// matching the init frame's inputs-then-outputs order.
func Start(workers int, init Init, segments []*os.File, log *slog.Logger) (*Pool, error) {
	if !Supported {
		return nil, fmt.Errorf("procpool: worker processes are not supported on this platform")
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("procpool: locate own binary: %w", err)
	}

	p := &Pool{log: log}
	for w := 0; w < workers; w++ {
		cmd := exec.Command(exe)
		cmd.Env = append(os.Environ(), childEnv+"=1")
		cmd.ExtraFiles = segments
		cmd.Stderr = os.Stderr

		stdin, err := cmd.StdinPipe()
		if err != nil {
			p.closeAll()
			return nil, fmt.Errorf("procpool: worker %d stdin: %w", w, err)
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			p.closeAll()
			return nil, fmt.Errorf("procpool: worker %d stdout: %w", w, err)
		}
		if err := cmd.Start(); err != nil {
			p.closeAll()
			return nil, fmt.Errorf("procpool: start worker %d: %w", w, err)
		}
		pr := &proc{cmd: cmd, stdin: stdin, enc: json.NewEncoder(stdin), dec: json.NewDecoder(stdout)}
		p.procs = append(p.procs, pr)

		if err := pr.enc.Encode(init); err != nil {
			p.closeAll()
			return nil, fmt.Errorf("procpool: init worker %d: %w", w, err)
		}
		log.Debug("started pool worker", "worker", w, "pid", cmd.Process.Pid)
	}
	return p, nil
}

// Workers returns the pool size.
func (p *Pool) Workers() int { return len(p.procs) }

// Dispatch sends one task per worker and waits for every result: the
// per-iteration barrier. The first worker failure or transport error is
// returned; the row chunks are disjoint, so a partial iteration leaves no
// torn rows behind, only stale ones.
func (p *Pool) Dispatch(tasks []Task) error {
	if len(tasks) != len(p.procs) {
		return fmt.Errorf("procpool: %d tasks for %d workers", len(tasks), len(p.procs))
	}
	for w, pr := range p.procs {
		if err := pr.enc.Encode(tasks[w]); err != nil {
			return fmt.Errorf("procpool: send to worker %d: %w", w, err)
		}
	}
	var firstErr error
	for w, pr := range p.procs {
		var res Result
		if err := pr.dec.Decode(&res); err != nil {
			return fmt.Errorf("procpool: worker %d died: %w", w, err)
		}
		if res.Err != "" && firstErr == nil {
			firstErr = fmt.Errorf("worker %d: %s", w, res.Err)
		}
	}
	return firstErr
}

// Close shuts every worker down: closing stdin makes the worker loop exit on
// EOF; workers that fail to exit within the wait timeout are killed. Errors
// are aggregated, not short-circuited, so every worker gets torn down.
func (p *Pool) Close() error {
	return p.closeAll()
}

func (p *Pool) closeAll() error {
	var err error
	for w, pr := range p.procs {
		if pr == nil {
			continue
		}
		err = multierr.Append(err, pr.stdin.Close())

		waited := make(chan error, 1)
		go func() { waited <- pr.cmd.Wait() }()
		select {
		case werr := <-waited:
			err = multierr.Append(err, werr)
		case <-time.After(waitTimeout):
			p.log.Warn("pool worker did not exit, killing", "worker", w)
			err = multierr.Append(err, pr.cmd.Process.Kill())
			<-waited
		}
	}
	p.procs = nil
	return err
}
