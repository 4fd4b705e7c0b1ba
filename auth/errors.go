package auth

import (
	"errors"
	"fmt"
)

var (
	ErrTimeout     = errors.New("auth: timed out waiting for user authorization")
	ErrNotEntitled = errors.New("auth: account does not own the game")
)

// Hop names used in ProviderError and NetworkError.
const (
	HopDeviceCode = "devicecode"
	HopToken      = "token"
	HopXBL        = "xbl"
	HopXSTS       = "xsts"
	HopGameLogin  = "login"
	HopProfile    = "profile"
)

type fatalMarker interface {
	Fatal() bool
}

func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrNotEntitled) {
		return true
	}

	var marker fatalMarker
	if !errors.As(err, &marker) {
		return false
	}

	return marker.Fatal()
}

// NetworkError is a transport failure: no response was received.
type NetworkError struct {
	Hop string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("auth: %s: network error: %v", e.Hop, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ProviderError means the remote service answered but rejected the request
// or returned an unexpected shape.
type ProviderError struct {
	Hop    string
	Status int
	Body   string
	Reason string
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("auth: %s: provider error (status=%d)", e.Hop, e.Status)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}

	if e.Body != "" {
		msg += ": " + truncate(e.Body, 256)
	}

	return msg
}

type AuthorizationDenied struct {
	Reason      string
	Description string
}

func (e *AuthorizationDenied) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("auth: authorization denied: %s (%s)", e.Reason, e.Description)
	}

	return "auth: authorization denied: " + e.Reason
}

func (e *AuthorizationDenied) Fatal() bool {
	return true
}

func IsNotEntitled(err error) bool {
	return errors.Is(err, ErrNotEntitled)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}
