package models

import "time"

// ModelQuota is the remaining quota for one upstream model.
type ModelQuota struct {
	Name       string `json:"name"`
	Percentage int    `json:"percentage"`
}

// QuotaData is the most recent quota fetch result for an account.
type QuotaData struct {
	Models               []ModelQuota      `json:"models"`
	LastUpdated          int64             `json:"last_updated"`
	SubscriptionTier     string            `json:"subscription_tier,omitempty"`
	IsForbidden          bool              `json:"is_forbidden"`
	ForbiddenReason      string            `json:"forbidden_reason,omitempty"`
	ModelForwardingRules map[string]string `json:"model_forwarding_rules"`
}

// NewQuotaData returns an empty quota snapshot stamped with the current time.
func NewQuotaData() QuotaData {
	return QuotaData{
		Models:               []ModelQuota{},
		LastUpdated:          time.Now().Unix(),
		ModelForwardingRules: map[string]string{},
	}
}

// ForbiddenQuota returns an empty quota marked forbidden with the given reason.
func ForbiddenQuota(reason string) QuotaData {
	q := NewQuotaData()
	q.IsForbidden = true
	q.ForbiddenReason = reason
	return q
}
