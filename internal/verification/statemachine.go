package verification

import (
	"fmt"

	"github.com/angelmondragon/railexchange-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/railexchange-backend/pkg/errors"
)

// Action is a named event that may move a record between statuses.
type Action string

const (
	ActionSubmit            Action = "submit"
	ActionScreeningComplete Action = "screening_complete"
	ActionApprove           Action = "approve"
	ActionReject            Action = "reject"
	ActionConfirmPayment    Action = "confirm_payment"
	ActionSuspend           Action = "suspend"
	ActionExpire            Action = "expire"
	ActionReinstate         Action = "reinstate"
	ActionRestart           Action = "restart"
	ActionRevoke            Action = "revoke"
)

type edge struct {
	from   enums.VerificationStatus
	action Action
}

// transitions is the only place legal status changes are declared.
var transitions = map[edge]enums.VerificationStatus{
	{enums.VerificationStatusDraft, ActionSubmit}:                  enums.VerificationStatusPendingAI,
	{enums.VerificationStatusPendingAI, ActionScreeningComplete}:   enums.VerificationStatusPendingAdmin,
	{enums.VerificationStatusPendingAdmin, ActionApprove}:          enums.VerificationStatusPendingPayment,
	{enums.VerificationStatusPendingAdmin, ActionReject}:           enums.VerificationStatusRejected,
	{enums.VerificationStatusPendingPayment, ActionConfirmPayment}: enums.VerificationStatusActive,
	{enums.VerificationStatusActive, ActionSuspend}:                enums.VerificationStatusSuspended,
	{enums.VerificationStatusActive, ActionExpire}:                 enums.VerificationStatusExpired,
	{enums.VerificationStatusSuspended, ActionReinstate}:           enums.VerificationStatusPendingAdmin,
	{enums.VerificationStatusRejected, ActionRestart}:              enums.VerificationStatusDraft,
	{enums.VerificationStatusExpired, ActionRestart}:               enums.VerificationStatusDraft,
	{enums.VerificationStatusPendingAdmin, ActionRevoke}:           enums.VerificationStatusRevoked,
	{enums.VerificationStatusPendingPayment, ActionRevoke}:         enums.VerificationStatusRevoked,
	{enums.VerificationStatusActive, ActionRevoke}:                 enums.VerificationStatusRevoked,
	{enums.VerificationStatusSuspended, ActionRevoke}:              enums.VerificationStatusRevoked,
}

// Transition resolves the status reached by applying action in status from.
// Illegal combinations return a conflict error and no status.
func Transition(from enums.VerificationStatus, action Action) (enums.VerificationStatus, error) {
	if to, ok := transitions[edge{from: from, action: action}]; ok {
		return to, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("cannot %s a verification in status %s", action, from)).
		WithDetails(map[string]any{"status": from, "action": action})
}

// CanTransition reports whether action is legal in status from.
func CanTransition(from enums.VerificationStatus, action Action) bool {
	_, ok := transitions[edge{from: from, action: action}]
	return ok
}

// IsLegalStep reports whether some action moves a record from one status to the other.
func IsLegalStep(from, to enums.VerificationStatus) bool {
	for e, target := range transitions {
		if e.from == from && target == to {
			return true
		}
	}
	return false
}
