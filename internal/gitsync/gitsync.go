// Package gitsync refreshes the working tree from its git remote before
// a batch run. The repository is optional: without a .git marker the
// sync is skipped and the run proceeds on local state.
//
// Two policies exist because the deployment history used both. The
// default is PolicyFFOnly: a failed pull is logged and tolerated, on
// the grounds that a missed sync should not cost a batch run.
package gitsync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alertme/runguard/internal/runner"
	"github.com/alertme/runguard/pkg/logging"
)

// Policy selects how the pre-run sync behaves.
type Policy string

const (
	// PolicyFFOnly runs a single fast-forward-only pull. Failure is
	// logged, the batch still runs.
	PolicyFFOnly Policy = "ff-only"
	// PolicyRebase runs fetch --all then pull --rebase --autostash.
	// Any failure aborts the run before the batch is touched.
	PolicyRebase Policy = "rebase"
)

// ParsePolicy validates a policy name from configuration.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyFFOnly, PolicyRebase:
		return Policy(s), nil
	}
	return "", fmt.Errorf("unknown sync policy %q (want %q or %q)", s, PolicyFFOnly, PolicyRebase)
}

// Detect reports whether root contains a git repository marker.
func Detect(root string) bool {
	_, err := os.Stat(filepath.Join(root, ".git"))
	return err == nil
}

// Syncer runs the pre-run sync in Root under the configured policy,
// streaming git output into the run log.
type Syncer struct {
	Root   string
	Policy Policy
	Log    *logging.Logger

	// Git overrides the git binary, for tests. Empty means "git".
	Git string
}

func (s *Syncer) git() string {
	if s.Git != "" {
		return s.Git
	}
	return "git"
}

// Sync refreshes the working tree. The returned error is non-nil only
// when the policy treats sync failure as fatal.
func (s *Syncer) Sync(ctx context.Context) error {
	if !Detect(s.Root) {
		s.Log.Line("no repository detected, skipping sync")
		return nil
	}

	switch s.Policy {
	case PolicyRebase:
		return s.syncRebase(ctx)
	default:
		return s.syncFFOnly(ctx)
	}
}

func (s *Syncer) syncFFOnly(ctx context.Context) error {
	s.Log.Line("git sync: pull --ff-only")
	code, err := s.run(ctx, "pull", "--ff-only")
	if err != nil {
		s.Log.Printf("git pull failed (%v), continuing with local state", err)
		return nil
	}
	if code != 0 {
		s.Log.Printf("git pull failed (exit %d), continuing with local state", code)
		return nil
	}
	s.Log.Line("git sync: ok")
	return nil
}

func (s *Syncer) syncRebase(ctx context.Context) error {
	s.Log.Line("git sync: fetch --all")
	code, err := s.run(ctx, "fetch", "--all")
	if err != nil {
		return fmt.Errorf("git fetch: %w", err)
	}
	if code != 0 {
		return fmt.Errorf("git fetch failed (exit %d)", code)
	}

	s.Log.Line("git sync: pull --rebase --autostash")
	code, err = s.run(ctx, "pull", "--rebase", "--autostash")
	if err != nil {
		return fmt.Errorf("git pull: %w", err)
	}
	if code != 0 {
		return fmt.Errorf("git pull failed (exit %d)", code)
	}

	s.Log.Line("git sync: ok")
	return nil
}

func (s *Syncer) run(ctx context.Context, args ...string) (int, error) {
	return runner.Stream(ctx, s.Log, s.Root, nil, s.git(), args...)
}
