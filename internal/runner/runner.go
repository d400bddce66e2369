// Package runner invokes child processes and forwards their output to
// the run log line by line, so the log stays live during long runs
// instead of dumping everything at exit.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/alertme/runguard/pkg/logging"
)

// lineChunkBytes caps how much of a child output line is buffered
// before it is flushed to the log. Lines longer than this are split
// across several log lines; the pipe is always drained to EOF either
// way, so a child spewing one huge line can never fill its pipe buffer
// and wedge the run while the lock is held.
const lineChunkBytes = 64 * 1024

// Stream runs name with args in dir, appending extra to the inherited
// environment, and forwards every stdout/stderr line to log as it is
// produced. stdout and stderr are read concurrently; interleaving is
// whatever the OS delivers.
//
// A child that starts and exits non-zero is a result, not an error:
// its exit code is returned with a nil error. The error return is
// reserved for failure to launch or to wait on the child.
func Stream(ctx context.Context, log *logging.Logger, dir string, extra []string, name string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), extra...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, fmt.Errorf("stdout pipe for %s: %w", name, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, fmt.Errorf("stderr pipe for %s: %w", name, err)
	}

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("failed to start %s: %w", name, err)
	}

	var wg sync.WaitGroup
	forward := func(r io.Reader) {
		defer wg.Done()
		br := bufio.NewReaderSize(r, lineChunkBytes)
		for {
			chunk, err := br.ReadSlice('\n')
			if len(chunk) > 0 {
				log.Line(strings.TrimRight(string(chunk), "\n"))
			}
			if err == bufio.ErrBufferFull {
				// Over-long line: flushed as a chunk, keep reading.
				continue
			}
			if err != nil {
				return
			}
		}
	}
	wg.Add(2)
	go forward(stdout)
	go forward(stderr)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("wait for %s: %w", name, err)
	}
	return 0, nil
}
