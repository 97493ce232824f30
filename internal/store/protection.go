package store

import (
	"sort"
	"strings"

	"github.com/j-veylop/antigravity-account-manager/internal/config"
	"github.com/j-veylop/antigravity-account-manager/internal/models"
)

// Reason written by older releases that disabled the whole account instead of
// tracking protection per model.
const legacyProtectionReason = "quota_protection"

// applyProtection recomputes the account's protected model set from its
// latest quota. Upstream reports several name variants per model; each is
// normalized to a standardized id and the minimum percentage across variants
// decides whether the id is protected. Returns the ids that newly entered
// protection.
func applyProtection(acct *models.Account, p config.QuotaProtection, mappings map[string]string) []string {
	if !p.Enabled || acct.Quota == nil {
		return nil
	}

	minima := make(map[string]int)
	for _, m := range acct.Quota.Models {
		id, ok := normalizeModelName(m.Name, mappings)
		if !ok {
			continue
		}
		if cur, seen := minima[id]; !seen || m.Percentage < cur {
			minima[id] = m.Percentage
		}
	}

	var added []string
	for _, id := range p.MonitoredModels {
		min, seen := minima[id]
		if !seen {
			continue
		}
		if min <= p.ThresholdPercentage {
			if !acct.ProtectedModels.Has(id) {
				acct.ProtectedModels.Add(id)
				added = append(added, id)
			}
		} else if acct.ProtectedModels.Has(id) {
			acct.ProtectedModels.Remove(id)
		}
	}

	if acct.ProxyDisabled && acct.ProxyDisabledReason == legacyProtectionReason {
		acct.SetProxyDisabled(false, "")
	}
	return added
}

// normalizeModelName maps an upstream model name to its standardized id by
// case-insensitive substring match. Longer mapping keys win so that a
// specific variant key beats a family prefix.
func normalizeModelName(name string, mappings map[string]string) (string, bool) {
	lower := strings.ToLower(name)

	keys := make([]string, 0, len(mappings))
	for k := range mappings {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	for _, k := range keys {
		if strings.Contains(lower, k) {
			return mappings[k], true
		}
	}
	return "", false
}
