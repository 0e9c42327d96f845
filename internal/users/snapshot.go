package users

import (
	"time"

	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
)

// Effective returns a copy of u whose mirrored verification statuses reflect
// now: a stored active status past its expiry reads as expired. u is not modified.
func Effective(u models.User, now time.Time) models.User {
	out := u
	out.SellerVerificationStatus, out.SellerVerifiedExpiresAt = effectiveStatus(u.SellerVerificationStatus, u.SellerVerifiedExpiresAt, now)
	out.ContractorVerificationStatus, out.ContractorVerifiedExpiresAt = effectiveStatus(u.ContractorVerificationStatus, u.ContractorVerifiedExpiresAt, now)
	return out
}

// VerifiedFor reports whether the mirrored status for path is active at now.
func VerifiedFor(u models.User, path enums.VerificationPath, now time.Time) bool {
	status, expiresAt := mirrorFor(u, path)
	if status == nil || *status != enums.VerificationStatusActive {
		return false
	}
	return expiresAt != nil && now.Before(*expiresAt)
}

// lapsedPaths lists the paths whose stored mirror is active but expired at now.
func lapsedPaths(u models.User, now time.Time) []enums.VerificationPath {
	var out []enums.VerificationPath
	for _, path := range []enums.VerificationPath{enums.VerificationPathSeller, enums.VerificationPathContractor} {
		status, expiresAt := mirrorFor(u, path)
		if status != nil && *status == enums.VerificationStatusActive && expiresAt != nil && !now.Before(*expiresAt) {
			out = append(out, path)
		}
	}
	return out
}

func mirrorFor(u models.User, path enums.VerificationPath) (*enums.VerificationStatus, *time.Time) {
	if path == enums.VerificationPathContractor {
		return u.ContractorVerificationStatus, u.ContractorVerifiedExpiresAt
	}
	return u.SellerVerificationStatus, u.SellerVerifiedExpiresAt
}

func effectiveStatus(status *enums.VerificationStatus, expiresAt *time.Time, now time.Time) (*enums.VerificationStatus, *time.Time) {
	if status == nil || *status != enums.VerificationStatusActive {
		return status, expiresAt
	}
	if expiresAt != nil && now.Before(*expiresAt) {
		return status, expiresAt
	}
	expired := enums.VerificationStatusExpired
	return &expired, nil
}
