// Package command executes external commands for tasks and reply rules:
// timeout-bounded, stdout-captured, with per-line output filtering.
package command

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"

	"github.com/klchiu/waops/errors"
)

// DefaultTimeout bounds command wall-clock time; the process is
// killed when exceeded.
const DefaultTimeout = 30 * time.Second

// NoOutputText is yielded when a command exits 0 with no surviving output.
const NoOutputText = "command executed successfully, no output"

// Runner executes command lines. A zero Timeout falls back to the
// default. A Runner carries no per-task state and is safe for
// concurrent use.
type Runner struct {
	Timeout time.Duration

	log *zap.SugaredLogger
}

// NewRunner creates a Runner with the default timeout.
func NewRunner(log *zap.SugaredLogger) *Runner {
	return &Runner{Timeout: DefaultTimeout, log: log}
}

// Run executes the command line and returns its filtered, trimmed
// standard output.
//
// The command line is split into program + arguments without shell
// interpretation. Blank output lines and lines matching any filter are
// dropped; a filter wrapped in /…/ is a regular expression, anything
// else a case-sensitive substring match. An exit code of 0 with empty
// filtered output yields NoOutputText; a non-zero exit with empty
// output yields a text carrying the exit code; otherwise the surviving
// output is returned verbatim.
func (r *Runner) Run(ctx context.Context, commandLine string, filters []string) (string, error) {
	if strings.TrimSpace(commandLine) == "" {
		return "", errors.ErrEmptyCommand
	}

	words, err := shellquote.Split(commandLine)
	if err != nil {
		return "", errors.Wrapf(errors.ErrEmptyCommand, "unparseable command line: %v", err)
	}
	if len(words) == 0 {
		return "", errors.ErrEmptyCommand
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, words[0], words[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", errors.Wrap(err, "failed to open stdout pipe")
	}

	matchers := compileFilters(filters, r.log)

	var kept []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.TrimSpace(line) == "" {
				continue
			}
			if dropped, filter := shouldDrop(line, matchers); dropped {
				if r.log != nil {
					r.log.Debugw("Filtered output line", "filter", filter)
				}
				continue
			}
			kept = append(kept, line)
		}
	}()

	if err := cmd.Start(); err != nil {
		return "", errors.Wrapf(errors.ErrSpawn, "%s: %v", words[0], err)
	}

	// Drain stdout to EOF before reaping so trailing output written
	// right before exit is never lost; Wait closes the pipe.
	<-done
	waitErr := cmd.Wait()

	if cctx.Err() == context.DeadlineExceeded {
		return "", errors.Wrapf(errors.ErrCommandTimeout, "after %s", timeout)
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	exitCode := cmd.ProcessState.ExitCode()
	if waitErr != nil && exitCode < 0 {
		return "", errors.Wrap(waitErr, "command did not run to completion")
	}

	result := strings.TrimSpace(strings.Join(kept, "\n"))
	if result == "" {
		if exitCode == 0 {
			return NoOutputText, nil
		}
		return fmt.Sprintf("command failed (exit code %d)", exitCode), nil
	}
	return result, nil
}

// matcher is one compiled output filter.
type matcher struct {
	raw    string
	re     *regexp.Regexp
	substr string
}

// compileFilters builds matchers from filter strings. Filters are
// validated at save time; a pattern that still fails to compile here
// degrades to no-match rather than dropping output.
func compileFilters(filters []string, log *zap.SugaredLogger) []matcher {
	matchers := make([]matcher, 0, len(filters))
	for _, f := range filters {
		if len(f) >= 2 && strings.HasPrefix(f, "/") && strings.HasSuffix(f, "/") {
			re, err := regexp.Compile(f[1 : len(f)-1])
			if err != nil {
				if log != nil {
					log.Warnw("Skipping invalid regex output filter", "filter", f, "error", err)
				}
				continue
			}
			matchers = append(matchers, matcher{raw: f, re: re})
			continue
		}
		matchers = append(matchers, matcher{raw: f, substr: f})
	}
	return matchers
}

func shouldDrop(line string, matchers []matcher) (bool, string) {
	for _, m := range matchers {
		if m.re != nil {
			if m.re.MatchString(line) {
				return true, m.raw
			}
			continue
		}
		if m.substr != "" && strings.Contains(line, m.substr) {
			return true, m.raw
		}
	}
	return false, ""
}
