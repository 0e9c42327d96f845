package verification

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/railexchange-backend/internal/notifications"
	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
)

func recordLink(path enums.VerificationPath) string {
	return "/verifications/" + string(path)
}

func pathLabel(path enums.VerificationPath) string {
	if path == enums.VerificationPathContractor {
		return "contractor"
	}
	return "seller"
}

// statusNotification builds the owner message for a transition into to.
// Statuses the owner is not told about return nil.
func statusNotification(rec *models.VerificationRecord, to enums.VerificationStatus, reason string) *notifications.Request {
	label := pathLabel(rec.Path)
	req := &notifications.Request{
		OwnerID: rec.OwnerID,
		Link:    recordLink(rec.Path),
	}
	switch to {
	case enums.VerificationStatusPendingPayment:
		req.Kind = enums.NotificationVerificationApproved
		req.Title = fmt.Sprintf("Your %s verification was approved", label)
		req.Message = "Choose a verification tier and complete payment to activate your badge."
	case enums.VerificationStatusRejected:
		req.Kind = enums.NotificationVerificationRejected
		req.Title = fmt.Sprintf("Your %s verification was rejected", label)
		req.Message = withReason("Review the feedback, update your documents and submit again.", reason)
	case enums.VerificationStatusSuspended:
		req.Kind = enums.NotificationVerificationSuspended
		req.Title = fmt.Sprintf("Your %s verification was suspended", label)
		req.Message = withReason("Your verified status is paused while an administrator reviews your account.", reason)
	case enums.VerificationStatusRevoked:
		req.Kind = enums.NotificationVerificationRevoked
		req.Title = fmt.Sprintf("Your %s verification was revoked", label)
		req.Message = withReason("Contact support if you believe this is a mistake.", reason)
	case enums.VerificationStatusExpired:
		req.Kind = enums.NotificationVerificationExpired
		req.Title = fmt.Sprintf("Your %s verification expired", label)
		req.Message = "Start a renewal to restore your verified status."
	case enums.VerificationStatusActive:
		req.Kind = enums.NotificationVerificationActive
		req.Title = fmt.Sprintf("Your %s verification is active", label)
		if rec.ExpiresAt != nil {
			req.Message = fmt.Sprintf("Your verified status is valid until %s.", rec.ExpiresAt.UTC().Format("January 2, 2006"))
		}
	default:
		return nil
	}
	return req
}

func renewalNotification(rec *models.VerificationRecord, daysRemaining int) notifications.Request {
	return notifications.Request{
		OwnerID: rec.OwnerID,
		Kind:    enums.NotificationVerificationRenewal,
		Title:   fmt.Sprintf("Your %s verification expires in %d days", pathLabel(rec.Path), daysRemaining),
		Message: "Renew before it lapses to keep your verified badge and listing placement.",
		Link:    recordLink(rec.Path),
	}
}

func withReason(message, reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return message
	}
	return "Reason: " + reason + ". " + message
}
