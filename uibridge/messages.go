package uibridge

import (
	"math"

	"github.com/n1ntencube/CubicLauncher/events"
)

const (
	TypeInstallProgress = "install-progress"
	TypeGameLog         = "minecraft-log"
	TypeGameExit        = "minecraft-exit"
	TypeGameError       = "minecraft-error"
	TypeLoginCode       = "login-code"
	TypeAccounts        = "accounts-changed"
)

// Message is one frame sent to the UI shell.
type Message struct {
	Type     string `json:"type"`
	Status   string `json:"status,omitempty"`
	Progress *int   `json:"progress,omitempty"`
	ModName  string `json:"modName,omitempty"`
	Error    string `json:"error,omitempty"`

	Stream string `json:"stream,omitempty"`
	Line   string `json:"line,omitempty"`

	Code    *int `json:"code,omitempty"`
	Crashed bool `json:"crashed,omitempty"`

	UserCode        string `json:"userCode,omitempty"`
	VerificationURI string `json:"verificationUri,omitempty"`

	Current string `json:"current,omitempty"`
	Count   *int   `json:"count,omitempty"`
}

func intPtr(v int) *int { return &v }

// Translate maps a bus event to a UI message. Events the UI has no use for
// report false.
func Translate(evt events.Event) (Message, bool) {
	switch e := evt.(type) {
	case events.InstallProgress:
		if e.Status == "error" {
			// InstallFailed carries the error text
			return Message{}, false
		}
		return Message{
			Type:     TypeInstallProgress,
			Status:   e.Status,
			Progress: intPtr(int(math.Round(e.Percent))),
			ModName:  e.ModName,
		}, true
	case events.InstallFailed:
		return Message{Type: TypeInstallProgress, Status: "error", Error: errString(e.Err)}, true
	case events.InstallCompleted:
		return Message{Type: TypeInstallProgress, Status: "complete", Progress: intPtr(100)}, true
	case events.GameOutput:
		return Message{Type: TypeGameLog, Stream: e.Stream, Line: e.Line}, true
	case events.GameExited:
		return Message{Type: TypeGameExit, Code: intPtr(e.Code), Crashed: e.Crashed}, true
	case events.GameError:
		return Message{Type: TypeGameError, Error: errString(e.Err)}, true
	case events.LoginCodeIssued:
		return Message{Type: TypeLoginCode, UserCode: e.UserCode, VerificationURI: e.VerificationURI}, true
	case events.AccountsChanged:
		return Message{Type: TypeAccounts, Current: e.Current, Count: intPtr(e.Count)}, true
	default:
		return Message{}, false
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
