package gitsource

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/minios-linux/stringlate/repo"
)

// progressInterval throttles clone progress updates.
const progressInterval = 75 * time.Millisecond

// reCloneProgress matches the phases of "git clone --progress" that carry
// meaningful percentages.
var reCloneProgress = regexp.MustCompile(`(Receiving objects|Resolving deltas):\s+\d+% \((\d+)/(\d+)\)`)

// clonePhases orders the phases matched by reCloneProgress. Each one fills
// phaseSteps of a shared scale so progress never goes back between phases.
var clonePhases = []string{"Receiving objects", "Resolving deltas"}

const phaseSteps = 100

// cloneBranch turns a remote-tracking branch such as "origin/dev" into the
// name git clone expects.
func cloneBranch(branch string) string {
	if i := strings.LastIndexByte(branch, '/'); i >= 0 {
		return branch[i+1:]
	}
	return branch
}

func (s *Source) clone(ctx context.Context, progress repo.ProgressFunc) error {
	args := []string{"clone", "--progress", "--origin", "origin", "--no-recurse-submodules"}
	if b := cloneBranch(s.branch); b != "" {
		args = append(args, "--branch", b, "--single-branch")
	}
	args = append(args, "--", s.url, s.workDir)

	cmd := exec.CommandContext(ctx, s.git, args...)
	cmd.Env = append(cmd.Environ(), "GIT_TERMINAL_PROMPT=0", "LC_ALL=C")

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("git clone: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("git clone: %w", err)
	}

	tail := watchProgress(stderr, progress, time.Now)
	if err := cmd.Wait(); err != nil {
		if msg := tail(); msg != "" {
			return fmt.Errorf("git clone %s: %w: %s", s.url, err, msg)
		}
		return fmt.Errorf("git clone %s: %w", s.url, err)
	}
	return nil
}

// watchProgress reads git's progress output until EOF, forwarding throttled
// updates. It returns a func giving the last non-progress line, which holds
// the reason when git fails.
func watchProgress(r io.Reader, progress repo.ProgressFunc, now func() time.Time) func() string {
	var (
		last     string
		lastSent time.Time
		reported = -1
	)
	total := len(clonePhases) * phaseSteps

	sc := bufio.NewScanner(r)
	sc.Split(scanLinesOrCR)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		m := reCloneProgress.FindStringSubmatch(line)
		if m == nil {
			if !strings.Contains(line, "%") {
				last = line
			}
			continue
		}

		done, _ := strconv.Atoi(m[2])
		count, _ := strconv.Atoi(m[3])
		if count <= 0 {
			continue
		}
		scaled := slices.Index(clonePhases, m[1])*phaseSteps + min(done, count)*phaseSteps/count
		if scaled < reported {
			continue
		}
		t := now()
		if done < count && t.Sub(lastSent) < progressInterval {
			continue
		}
		lastSent = t
		reported = scaled
		progress(repo.Progress{Stage: 1, Done: scaled, Total: total, Message: m[1]})
	}
	return func() string { return last }
}

// scanLinesOrCR splits on '\n' and on the bare '\r' git uses to redraw its
// progress line.
func scanLinesOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// remoteBranches lists the remote-tracking branches of the clone.
func (s *Source) remoteBranches(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, s.git, "-C", s.workDir, "branch", "-r", "--format=%(refname:short)")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git branch -r: %w", err)
	}
	return parseBranches(string(out)), nil
}

func parseBranches(out string) []string {
	var branches []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.Contains(line, "/") || strings.HasSuffix(line, "/HEAD") {
			continue
		}
		branches = append(branches, line)
	}
	return branches
}
