package verification

import (
	"testing"

	"github.com/angelmondragon/railexchange-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/railexchange-backend/pkg/errors"
)

var allStatuses = []enums.VerificationStatus{
	enums.VerificationStatusDraft,
	enums.VerificationStatusPendingAI,
	enums.VerificationStatusPendingAdmin,
	enums.VerificationStatusPendingPayment,
	enums.VerificationStatusActive,
	enums.VerificationStatusRejected,
	enums.VerificationStatusSuspended,
	enums.VerificationStatusExpired,
	enums.VerificationStatusRevoked,
}

var allActions = []Action{
	ActionSubmit,
	ActionScreeningComplete,
	ActionApprove,
	ActionReject,
	ActionConfirmPayment,
	ActionSuspend,
	ActionExpire,
	ActionReinstate,
	ActionRestart,
	ActionRevoke,
}

func TestTransitionLegalEdges(t *testing.T) {
	cases := []struct {
		from   enums.VerificationStatus
		action Action
		to     enums.VerificationStatus
	}{
		{enums.VerificationStatusDraft, ActionSubmit, enums.VerificationStatusPendingAI},
		{enums.VerificationStatusPendingAI, ActionScreeningComplete, enums.VerificationStatusPendingAdmin},
		{enums.VerificationStatusPendingAdmin, ActionApprove, enums.VerificationStatusPendingPayment},
		{enums.VerificationStatusPendingAdmin, ActionReject, enums.VerificationStatusRejected},
		{enums.VerificationStatusPendingPayment, ActionConfirmPayment, enums.VerificationStatusActive},
		{enums.VerificationStatusActive, ActionSuspend, enums.VerificationStatusSuspended},
		{enums.VerificationStatusActive, ActionExpire, enums.VerificationStatusExpired},
		{enums.VerificationStatusSuspended, ActionReinstate, enums.VerificationStatusPendingAdmin},
		{enums.VerificationStatusRejected, ActionRestart, enums.VerificationStatusDraft},
		{enums.VerificationStatusExpired, ActionRestart, enums.VerificationStatusDraft},
		{enums.VerificationStatusPendingAdmin, ActionRevoke, enums.VerificationStatusRevoked},
		{enums.VerificationStatusPendingPayment, ActionRevoke, enums.VerificationStatusRevoked},
		{enums.VerificationStatusActive, ActionRevoke, enums.VerificationStatusRevoked},
		{enums.VerificationStatusSuspended, ActionRevoke, enums.VerificationStatusRevoked},
	}
	for _, tc := range cases {
		got, err := Transition(tc.from, tc.action)
		if err != nil {
			t.Fatalf("%s/%s: unexpected error %v", tc.from, tc.action, err)
		}
		if got != tc.to {
			t.Fatalf("%s/%s: expected %s got %s", tc.from, tc.action, tc.to, got)
		}
	}
}

func TestTransitionRejectsEverythingElse(t *testing.T) {
	legal := 0
	for _, from := range allStatuses {
		for _, action := range allActions {
			to, err := Transition(from, action)
			if CanTransition(from, action) {
				legal++
				if err != nil {
					t.Fatalf("%s/%s: CanTransition true but error %v", from, action, err)
				}
				continue
			}
			if err == nil {
				t.Fatalf("%s/%s: expected conflict, got %s", from, action, to)
			}
			if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
				t.Fatalf("%s/%s: expected conflict code, got %v", from, action, err)
			}
			if to != "" {
				t.Fatalf("%s/%s: expected empty status on error", from, action)
			}
		}
	}
	if legal != 14 {
		t.Fatalf("expected 14 legal edges, got %d", legal)
	}
}

func TestRevokedIsAbsorbing(t *testing.T) {
	for _, action := range allActions {
		if CanTransition(enums.VerificationStatusRevoked, action) {
			t.Fatalf("revoked must not accept %s", action)
		}
	}
}

func TestIsLegalStep(t *testing.T) {
	if !IsLegalStep(enums.VerificationStatusPendingPayment, enums.VerificationStatusActive) {
		t.Fatal("pending_payment -> active should be legal")
	}
	if IsLegalStep(enums.VerificationStatusPendingAdmin, enums.VerificationStatusActive) {
		t.Fatal("pending_admin -> active must not skip payment")
	}
	if IsLegalStep(enums.VerificationStatusDraft, enums.VerificationStatusPendingAdmin) {
		t.Fatal("draft -> pending_admin must pass through pending_ai")
	}
}
