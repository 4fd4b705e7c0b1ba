package launch

import (
	"errors"
	"fmt"
)

var ErrNotRunning = errors.New("launch: process is not running")

// SpawnError means the game process could not be started.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("launch: start %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
