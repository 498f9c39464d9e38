// Package aws provides thin wrappers around AWS SDK clients used by
// ollamastack. This file classifies CloudFormation stack statuses and error
// responses so the deployer's state machine never touches the provider's raw
// status vocabulary directly.
package aws

import (
	"errors"
	"strings"

	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"
)

// StatusClass is the deployer's view of a stack status. Only three classes
// matter: keep polling, stop with outputs, or stop without them.
type StatusClass int

const (
	// StatusInProgress means the operation has not reached a terminal state.
	StatusInProgress StatusClass = iota

	// StatusSucceeded is a terminal state with outputs available.
	StatusSucceeded

	// StatusFailed is a terminal state, including rollback-complete variants,
	// after which no outputs are returned.
	StatusFailed
)

// String returns a short label for logging.
func (c StatusClass) String() string {
	switch c {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "in-progress"
	}
}

// Classify maps a raw CloudFormation stack status onto a StatusClass.
// CREATE_COMPLETE and UPDATE_COMPLETE are the two success labels; any status
// carrying a FAILED marker or a rollback-complete variant is a failure;
// everything else means the operation is still running.
func Classify(status cftypes.StackStatus) StatusClass {
	switch status {
	case cftypes.StackStatusCreateComplete, cftypes.StackStatusUpdateComplete:
		return StatusSucceeded
	case cftypes.StackStatusRollbackComplete, cftypes.StackStatusUpdateRollbackComplete:
		return StatusFailed
	}
	if strings.Contains(string(status), "FAILED") {
		return StatusFailed
	}
	return StatusInProgress
}

// IsStackNotFound reports whether err is CloudFormation's way of saying the
// named stack does not exist. The service signals this with a ValidationError
// (400) rather than a distinct error code, so both the smithy error code and
// the message are consulted.
func IsStackNotFound(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ValidationError" &&
			strings.Contains(apiErr.ErrorMessage(), "does not exist")
	}
	return strings.Contains(err.Error(), "does not exist")
}

// noUpdatesMsg is the substring CloudFormation returns in a ValidationError
// when a stack update produces no changes.
const noUpdatesMsg = "No updates are to be performed"

// IsNoUpdates reports whether err is the "No updates are to be performed"
// response from UpdateStack. Callers treat it as a successful no-op.
func IsNoUpdates(err error) bool {
	return err != nil && strings.Contains(err.Error(), noUpdatesMsg)
}
