package console

import (
	"errors"
	"net/http"
	"strings"

	agencysdk "spyagency/sdk/go"
)

// Local guard failures. No request is sent when one of these is returned.
var (
	ErrBusy                  = errors.New("a request for this item is already in flight")
	ErrNotConfirmed          = errors.New("action not confirmed")
	ErrUnknownAgent          = errors.New("agent not in list")
	ErrUnknownMission        = errors.New("mission not in list")
	ErrUnknownTarget         = errors.New("target not in mission")
	ErrNotEditing            = errors.New("no salary edit in progress")
	ErrNegativeSalary        = errors.New("salary must not be negative")
	ErrDraftIncomplete       = errors.New("mission needs a name, a description and 1-3 targets")
	ErrTargetInputIncomplete = errors.New("target name and country are required")
	ErrTargetLimit           = errors.New("mission already has the maximum number of targets")
	ErrTargetNotDeletable    = errors.New("only targets in init status can be deleted")
	ErrMissionAssigned       = errors.New("mission has an assigned agent")
	ErrDialogClosed          = errors.New("assignment dialog is not open")
	ErrNoAgentChosen         = errors.New("no agent selected for assignment")
	ErrNoAgentSelected       = errors.New("no agent selected")
	ErrNoMission             = errors.New("no mission loaded")
	ErrTargetFinal           = errors.New("target is completed and cannot be modified")
	ErrUpdateInFlight        = errors.New("target update already in flight")
)

// FailureKind classifies a gateway failure for display and recovery.
type FailureKind int

const (
	// TransientNetworkFailure covers transport errors, undecodable bodies and 5xx.
	TransientNetworkFailure FailureKind = iota
	// ValidationRejected is a 4xx carrying the backend's reason.
	ValidationRejected
	// ConflictRejected is a 409, e.g. a delete blocked by an assignment.
	ConflictRejected
)

func (k FailureKind) String() string {
	switch k {
	case ValidationRejected:
		return "validation_rejected"
	case ConflictRejected:
		return "conflict_rejected"
	default:
		return "transient_network_failure"
	}
}

// Classify maps a gateway error onto the failure taxonomy.
func Classify(err error) FailureKind {
	var apiErr *agencysdk.APIError
	if !errors.As(err, &apiErr) {
		return TransientNetworkFailure
	}
	switch {
	case apiErr.StatusCode == http.StatusConflict:
		return ConflictRejected
	case apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
		return ValidationRejected
	default:
		return TransientNetworkFailure
	}
}

// DisplayMessage picks the text shown for err: the envelope's details when
// present, the envelope's error for other 4xx responses, else fallback.
func DisplayMessage(err error, fallback string) string {
	var apiErr *agencysdk.APIError
	if errors.As(err, &apiErr) {
		if d := strings.TrimSpace(apiErr.Details); d != "" {
			return d
		}
		if Classify(err) != TransientNetworkFailure {
			if c := strings.TrimSpace(apiErr.Code); c != "" {
				return c
			}
		}
	}
	return fallback
}
