package enums

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationVerificationApproved  NotificationType = "verification_approved"
	NotificationVerificationRejected  NotificationType = "verification_rejected"
	NotificationVerificationSuspended NotificationType = "verification_suspended"
	NotificationVerificationRevoked   NotificationType = "verification_revoked"
	NotificationVerificationExpired   NotificationType = "verification_expired"
	NotificationVerificationActive    NotificationType = "verification_active"
	NotificationVerificationRenewal   NotificationType = "verification_renewal_due"
	NotificationAddOnExpired          NotificationType = "addon_expired"
)

var validNotificationTypes = set[NotificationType]{
	NotificationVerificationApproved,
	NotificationVerificationRejected,
	NotificationVerificationSuspended,
	NotificationVerificationRevoked,
	NotificationVerificationExpired,
	NotificationVerificationActive,
	NotificationVerificationRenewal,
	NotificationAddOnExpired,
}

func (n NotificationType) String() string {
	return string(n)
}

func (n NotificationType) IsValid() bool {
	return validNotificationTypes.has(n)
}

// ParseNotificationType converts raw input into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	return validNotificationTypes.parse("notification type", value)
}
