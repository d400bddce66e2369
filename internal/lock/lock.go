// Package lock implements the advisory run lock. The lock is a small
// file whose modification time decides freshness: a marker younger than
// the staleness threshold means a run is (presumed) live and a new run
// must be skipped; an older marker is treated as abandoned and replaced.
package lock

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// ErrHeld is the sentinel matched with errors.Is when a fresh marker
// blocks acquisition. Callers treat it as a skip, not a failure.
var ErrHeld = errors.New("run lock held")

// HeldError reports a fresh marker found during Acquire.
type HeldError struct {
	Path string
	Age  time.Duration
	PID  int
}

func (e *HeldError) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("run lock %s held by pid %d (age %s)", e.Path, e.PID, e.Age.Round(time.Second))
	}
	return fmt.Sprintf("run lock %s held (age %s)", e.Path, e.Age.Round(time.Second))
}

func (e *HeldError) Is(target error) bool { return target == ErrHeld }

// Lock is an acquired run lock. Release must be called on every exit
// path after a successful Acquire.
type Lock struct {
	path string
	f    *os.File
}

// Acquire takes the run lock at path.
//
// A marker younger than staleAfter returns a *HeldError (errors.Is
// ErrHeld). A stale marker is removed best-effort and replaced. The
// marker itself is created with O_CREATE|O_EXCL so two invocations
// racing into the same window cannot both win: the loser sees EEXIST
// and reports ErrHeld.
func Acquire(path string, staleAfter time.Duration) (*Lock, error) {
	fi, err := os.Stat(path)
	if err == nil {
		age := time.Since(fi.ModTime())
		if age < staleAfter {
			return nil, &HeldError{Path: path, Age: age, PID: readPID(path)}
		}
		// Stale marker from an abandoned run. Removal failure is not
		// fatal; the exclusive create below decides ownership.
		_ = os.Remove(path)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat run lock %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, &HeldError{Path: path, PID: readPID(path)}
		}
		return nil, fmt.Errorf("create run lock %s: %w", path, err)
	}

	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("write pid to run lock %s: %w", path, err)
	}

	return &Lock{path: path, f: f}, nil
}

// Path returns the marker path.
func (l *Lock) Path() string { return l.path }

// Release closes and removes the marker. Idempotent.
func (l *Lock) Release() error {
	if l.f == nil {
		return nil
	}
	closeErr := l.f.Close()
	l.f = nil

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove run lock %s: %w", l.path, err)
	}
	if closeErr != nil {
		return fmt.Errorf("close run lock %s: %w", l.path, closeErr)
	}
	return nil
}

// Info describes the marker for status reporting.
type Info struct {
	Exists     bool
	ModTime    time.Time
	Age        time.Duration
	PID        int
	PIDRunning bool
}

// Inspect reports the marker's state without touching it. PID liveness
// is diagnostic only; freshness decisions use the modification time.
func Inspect(path string) (Info, error) {
	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		return Info{}, nil
	}
	if err != nil {
		return Info{}, fmt.Errorf("stat run lock %s: %w", path, err)
	}

	info := Info{
		Exists:  true,
		ModTime: fi.ModTime(),
		Age:     time.Since(fi.ModTime()),
		PID:     readPID(path),
	}
	if info.PID > 0 {
		running, err := process.PidExists(int32(info.PID))
		if err == nil {
			info.PIDRunning = running
		}
	}
	return info, nil
}

// readPID parses the owner PID recorded in the marker. Returns 0 when
// the marker is empty or unreadable; the age check never depends on it.
func readPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0
	}
	return pid
}
