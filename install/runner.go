package install

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/exec"

	"github.com/n1ntencube/CubicLauncher/logging"
)

// Runner starts an external program and waits for it.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (exitCode int, err error)
}

// ExecRunner runs commands with os/exec and logs their output.
type ExecRunner struct {
	Logger logging.Logger
}

func (r ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (int, error) {
	log := logging.With(r.Logger)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	done := make(chan struct{})
	go func() {
		defer close(done)
		sc := bufio.NewScanner(pr)
		for sc.Scan() {
			log.Debug("installer", logging.F("line", sc.Text()))
		}
		_, _ = io.Copy(io.Discard, pr)
	}()

	err := cmd.Run()
	pw.Close()
	<-done

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, err
	}

	return 0, nil
}
