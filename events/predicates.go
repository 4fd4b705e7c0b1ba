package events

import "strings"

func IsName(name Name) Predicate {
	return func(evt Event) bool {
		if evt == nil {
			return false
		}

		return evt.Name() == name
	}
}

// HasPrefix matches every event of a family, e.g. "install." or "game.".
func HasPrefix(prefix string) Predicate {
	return func(evt Event) bool {
		if evt == nil {
			return false
		}

		return strings.HasPrefix(string(evt.Name()), prefix)
	}
}

func Any(preds ...Predicate) Predicate {
	return func(evt Event) bool {
		for _, p := range preds {
			if p != nil && p(evt) {
				return true
			}
		}

		return false
	}
}

// InstallFinished matches the terminal event of a sequencer run.
func InstallFinished() Predicate {
	return func(evt Event) bool {
		switch evt.(type) {
		case InstallCompleted, InstallFailed:
			return true
		default:
			return false
		}
	}
}

func ForProcess(processID string) Predicate {
	return func(evt Event) bool {
		switch e := evt.(type) {
		case GameStarted:
			return e.ProcessID == processID
		case GameOutput:
			return e.ProcessID == processID
		case GameError:
			return e.ProcessID == processID
		case GameExited:
			return e.ProcessID == processID
		default:
			return false
		}
	}
}

func GameExitedFor(processID string) Predicate {
	return func(evt Event) bool {
		exited, ok := evt.(GameExited)
		if !ok {
			return false
		}

		return exited.ProcessID == processID
	}
}
