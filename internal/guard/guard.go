// Package guard serializes batch runs: at most one live execution per
// lock-staleness window, an optional pre-run git sync, and a durable
// audit trail in the run log.
package guard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/alertme/runguard/internal/config"
	"github.com/alertme/runguard/internal/gitsync"
	"github.com/alertme/runguard/internal/lock"
	"github.com/alertme/runguard/internal/metrics"
	"github.com/alertme/runguard/internal/runner"
	"github.com/alertme/runguard/pkg/logging"
)

// Result classifies how an attempt ended.
type Result string

const (
	// ResultRan means the batch program was invoked.
	ResultRan Result = "ran"
	// ResultSkipped means a fresh lock blocked the attempt. Skips map
	// to a zero exit status; they are not failures.
	ResultSkipped Result = "skipped"
)

// Outcome describes a finished attempt.
type Outcome struct {
	Result   Result
	ExitCode int
	Start    time.Time
	Duration time.Duration
}

// Guard coordinates one attempt. Construct with New, use once.
type Guard struct {
	cfg config.Config
	log *logging.Logger

	// gitBin overrides the git binary for tests.
	gitBin string
}

// New returns a Guard for cfg writing its audit trail to log.
func New(cfg config.Config, log *logging.Logger) *Guard {
	return &Guard{cfg: cfg, log: log}
}

// AttemptRun performs one guarded attempt:
//
//  1. Take the run lock; a fresh marker means a previous run is still
//     inside its window, so log and return a skip.
//  2. With the lock held (released on every path below), sync the
//     working tree when a repository is present.
//  3. Invoke the batch program with its fixed arguments, streaming its
//     output into the run log.
//  4. Record the outcome in the log and the metrics textfile.
//
// The batch program's own exit code is logged and recorded but does
// not turn into an error: runguard reports whether it ran the batch,
// not whether the batch succeeded.
func (g *Guard) AttemptRun(ctx context.Context) (Outcome, error) {
	lk, err := lock.Acquire(g.cfg.LockPath(), g.cfg.LockStaleAfter)
	if err != nil {
		var held *lock.HeldError
		if errors.As(err, &held) {
			g.log.Printf("skip, already running (lock age %s)", held.Age.Round(time.Second))
			return Outcome{Result: ResultSkipped}, nil
		}
		err = fmt.Errorf("acquire run lock: %w", err)
		g.log.Printf("exception: %v", err)
		return Outcome{}, err
	}
	defer func() {
		if rerr := lk.Release(); rerr != nil {
			g.log.Printf("failed to release run lock: %v", rerr)
		}
	}()

	syncer := &gitsync.Syncer{
		Root:   g.cfg.Root,
		Policy: g.cfg.Policy(),
		Log:    g.log,
		Git:    g.gitBin,
	}
	if err := syncer.Sync(ctx); err != nil {
		g.log.Printf("exception: %v", err)
		return Outcome{}, err
	}

	start := time.Now()
	g.log.Printf("starting batch: %s --config %s --default-pages %d",
		g.cfg.BatchPath(), g.cfg.BatchConfigPath(), g.cfg.DefaultPages)

	env := []string{"LOG_LEVEL=" + g.cfg.ChildLogLevel}
	code, err := runner.Stream(ctx, g.log, g.cfg.Root, env, g.cfg.BatchPath(),
		"--config", g.cfg.BatchConfigPath(),
		"--default-pages", strconv.Itoa(g.cfg.DefaultPages))
	if err != nil {
		g.log.Printf("exception: %v", err)
		return Outcome{}, err
	}

	out := Outcome{
		Result:   ResultRan,
		ExitCode: code,
		Start:    start,
		Duration: time.Since(start),
	}
	g.log.Printf("batch finished (exit %d)", code)

	if path := g.cfg.MetricsPath(); path != "" {
		sample := metrics.RunSample{Start: out.Start, Duration: out.Duration, ExitCode: out.ExitCode}
		if err := metrics.Write(path, sample); err != nil {
			// The run itself succeeded; a broken metrics file only
			// costs observability.
			g.log.Printf("failed to write metrics file: %v", err)
		}
	}

	return out, nil
}
