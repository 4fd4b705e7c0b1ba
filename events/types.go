package events

import "time"

type Name string

const (
	EventLoginCodeIssued Name = "auth.code_issued"
	EventLoginSucceeded  Name = "auth.login_succeeded"
	EventLoginFailed     Name = "auth.login_failed"

	EventAccountsChanged Name = "accounts.changed"

	EventInstallProgress  Name = "install.progress"
	EventInstallFailed    Name = "install.failed"
	EventInstallCompleted Name = "install.completed"
	EventLibrarySkipped   Name = "install.library_skipped"

	EventGameStarted Name = "game.started"
	EventGameOutput  Name = "game.output"
	EventGameError   Name = "game.error"
	EventGameExited  Name = "game.exited"
)

type Event interface {
	Name() Name
	Timestamp() time.Time
}

type Base struct {
	At time.Time
}

func (b Base) Timestamp() time.Time {
	return b.At
}

// Now returns a Base stamped with the current UTC time.
func Now() Base {
	return Base{At: time.Now().UTC()}
}

type LoginCodeIssued struct {
	Base
	UserCode        string
	VerificationURI string
	ExpiresAt       time.Time
}

func (e LoginCodeIssued) Name() Name {
	return EventLoginCodeIssued
}

type LoginSucceeded struct {
	Base
	ProfileID   string
	ProfileName string
}

func (e LoginSucceeded) Name() Name {
	return EventLoginSucceeded
}

type LoginFailed struct {
	Base
	Err error
}

func (e LoginFailed) Name() Name {
	return EventLoginFailed
}

type AccountsChanged struct {
	Base
	Current string
	Count   int
}

func (e AccountsChanged) Name() Name {
	return EventAccountsChanged
}

// InstallProgress carries the overall percentage of one sequencer run.
// Percent never decreases within a run.
type InstallProgress struct {
	Base
	Stage   string
	Status  string
	Percent float64
	ModName string
}

func (e InstallProgress) Name() Name {
	return EventInstallProgress
}

type InstallFailed struct {
	Base
	Stage string
	Err   error
}

func (e InstallFailed) Name() Name {
	return EventInstallFailed
}

type InstallCompleted struct {
	Base
	GameDir string
	Version string
}

func (e InstallCompleted) Name() Name {
	return EventInstallCompleted
}

type LibrarySkipped struct {
	Base
	Path string
	Err  error
}

func (e LibrarySkipped) Name() Name {
	return EventLibrarySkipped
}

type GameStarted struct {
	Base
	ProcessID string
	PID       int
}

func (e GameStarted) Name() Name {
	return EventGameStarted
}

type GameOutput struct {
	Base
	ProcessID string
	Stream    string
	Line      string
}

func (e GameOutput) Name() Name {
	return EventGameOutput
}

type GameError struct {
	Base
	ProcessID string
	Err       error
}

func (e GameError) Name() Name {
	return EventGameError
}

type GameExited struct {
	Base
	ProcessID string
	Code      int
	Crashed   bool
}

func (e GameExited) Name() Name {
	return EventGameExited
}
