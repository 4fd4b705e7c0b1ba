package microsoft

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/n1ntencube/CubicLauncher/auth"
)

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCodes       []int  `json:"error_codes"`
}

// pollOutcome classifies one device-code token response.
type pollOutcome int

const (
	pollGranted pollOutcome = iota
	pollPending
	pollSlowDown
	pollFailed
)

func parseErrorResponse(raw []byte) (errorResponse, bool) {
	var payload errorResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return errorResponse{}, false
	}

	return payload, payload.Error != ""
}

// classifyPollError maps a non-2xx token response to an outcome, and to an
// error when the outcome is terminal.
func classifyPollError(status int, raw []byte) (pollOutcome, error) {
	payload, ok := parseErrorResponse(raw)
	if !ok {
		return pollFailed, &auth.ProviderError{Hop: auth.HopToken, Status: status, Body: string(raw)}
	}

	switch strings.ToLower(payload.Error) {
	case "authorization_pending":
		return pollPending, nil
	case "slow_down":
		return pollSlowDown, nil
	case "expired_token":
		return pollFailed, auth.ErrTimeout
	case "authorization_declined", "access_denied", "bad_verification_code", "invalid_grant":
		return pollFailed, &auth.AuthorizationDenied{Reason: payload.Error, Description: payload.ErrorDescription}
	}

	if status >= 500 {
		return pollFailed, &auth.ProviderError{Hop: auth.HopToken, Status: status, Body: string(raw), Reason: payload.Error}
	}

	return pollFailed, &auth.AuthorizationDenied{Reason: payload.Error, Description: payload.ErrorDescription}
}

func exchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}

		if retrieveErr.ErrorCode == "access_denied" {
			return &auth.AuthorizationDenied{Reason: retrieveErr.ErrorCode, Description: retrieveErr.ErrorDescription}
		}

		return &auth.ProviderError{
			Hop:    auth.HopToken,
			Status: status,
			Body:   string(retrieveErr.Body),
			Reason: retrieveErr.ErrorCode,
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &auth.NetworkError{Hop: auth.HopToken, Err: err}
	}

	return &auth.ProviderError{Hop: auth.HopToken, Reason: err.Error()}
}
