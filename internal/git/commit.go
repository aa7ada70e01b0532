// Package git creates the per-task commits requested by the loop. It
// wraps the git CLI behind a CommandExecutor interface so tests can run
// without a repository.
package git

import (
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// CommandExecutor abstracts command execution for testability.
type CommandExecutor interface {
	// Run executes a command in dir and returns combined output.
	Run(dir string, name string, args ...string) ([]byte, error)
}

// CLICommandExecutor executes commands using os/exec.
type CLICommandExecutor struct{}

// Run executes a command and returns combined output.
func (e *CLICommandExecutor) Run(dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Committer stages working-tree changes and creates one commit per
// completed task.
type Committer struct {
	dir      string
	tag      string
	executor CommandExecutor
}

// NewCommitter creates a Committer for the repository at dir. Commit
// subjects are prefixed with tag.
func NewCommitter(dir, tag string) *Committer {
	return &Committer{dir: dir, tag: tag, executor: &CLICommandExecutor{}}
}

// NewCommitterWithExecutor creates a Committer with a custom executor.
// This is primarily useful for testing.
func NewCommitterWithExecutor(dir, tag string, executor CommandExecutor) *Committer {
	return &Committer{dir: dir, tag: tag, executor: executor}
}

// Result describes the outcome of a commit request.
type Result struct {
	// Skipped is true when there were no staged changes to commit.
	Skipped bool
	// Subject is the commit subject that was (or would have been) used.
	Subject string
}

// boldHeadingRe matches a title of the form "**Heading** remainder".
var boldHeadingRe = regexp.MustCompile(`^\*\*(.+?)\*\*\s*(.+)$`)

// CommitTask stages all working-tree changes and commits them for the
// task with the given 1-based ordinal and title. When the tree is clean
// after staging, no commit is created and the result reports Skipped.
func (c *Committer) CommitTask(ordinal int, title string) (Result, error) {
	subject, body := c.Message(ordinal, title)
	res := Result{Subject: subject}

	output, err := c.executor.Run(c.dir, "git", "add", "-A")
	if err != nil {
		return res, fmt.Errorf("failed to stage changes: %w\n%s", err, output)
	}

	output, err = c.executor.Run(c.dir, "git", "status", "--porcelain")
	if err != nil {
		return res, fmt.Errorf("failed to check git status: %w\n%s", err, output)
	}
	if strings.TrimSpace(string(output)) == "" {
		res.Skipped = true
		return res, nil
	}

	args := []string{"commit", "-m", subject}
	if body != "" {
		args = append(args, "-m", body)
	}
	output, err = c.executor.Run(c.dir, "git", args...)
	if err != nil {
		if strings.Contains(string(output), "nothing to commit") {
			res.Skipped = true
			return res, nil
		}
		return res, fmt.Errorf("failed to commit: %w\n%s", err, output)
	}

	return res, nil
}

// Message builds the commit subject and body for a task. The subject is
// "<tag>: task <N> - <short title>". When the title carries a separator,
// a bold heading or a dash-separated trailing clause, the remainder
// becomes the body.
func (c *Committer) Message(ordinal int, title string) (subject, body string) {
	short := strings.TrimSpace(title)

	if m := boldHeadingRe.FindStringSubmatch(short); m != nil {
		short = strings.TrimSpace(m[1])
		body = strings.TrimSpace(m[2])
	} else if idx := strings.Index(short, " - "); idx > 0 {
		body = strings.TrimSpace(short[idx+3:])
		short = strings.TrimSpace(short[:idx])
	}

	subject = fmt.Sprintf("%s: task %d - %s", c.tag, ordinal, short)
	return subject, body
}
