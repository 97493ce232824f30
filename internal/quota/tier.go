package quota

import "time"

// SubscriptionTier represents the user's subscription level.
type SubscriptionTier string

const (
	TierFree    SubscriptionTier = "FREE"
	TierPro     SubscriptionTier = "PRO"
	TierUnknown SubscriptionTier = "UNKNOWN"
)

// PRO quotas reset hourly (reset at most 6 hours out), FREE quotas daily.
const tierThreshold = 6 * time.Hour

func detectTier(resetTime time.Time) SubscriptionTier {
	if resetTime.IsZero() {
		return TierUnknown
	}
	if time.Until(resetTime) <= tierThreshold {
		return TierPro
	}
	return TierFree
}
