package executor

import (
	"io"
	"os/exec"

	"github.com/pkg/errors"
)

// CommandRunner interface for dependency injection and improved testability
type CommandRunner interface {
	LookPath(file string) (string, error)
	Run(dir, name string, args []string, stdout, stderr io.Writer) (int, error)
}

// RealCommandRunner implements CommandRunner interface using actual OS calls
type RealCommandRunner struct{}

func (RealCommandRunner) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// Run executes the command to completion and returns its exit code. A
// non-zero exit code is returned alongside the error that reported it.
func (RealCommandRunner) Run(dir, name string, args []string, stdout, stderr io.Writer) (int, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), err
		}
		return -1, err
	}
	return 0, nil
}
