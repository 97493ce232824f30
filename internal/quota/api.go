package quota

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/j-veylop/antigravity-account-manager/internal/logger"
	"github.com/j-veylop/antigravity-account-manager/internal/models"
	"github.com/j-veylop/antigravity-account-manager/internal/uagent"
)

var defaultEndpoints = []string{
	"https://cloudcode-pa.googleapis.com",
	"https://daily-cloudcode-pa.sandbox.googleapis.com",
}

const fetchModelsPath = "/v1internal:fetchAvailableModels"

// StatusError is an HTTP-status-level failure from the quota endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("quota request failed (status %d): %s", e.Code, e.Body)
}

// FetchResult is one successful quota fetch.
type FetchResult struct {
	Quota     models.QuotaData
	ProjectID string
}

// QuotaAPI is the quota endpoint contract used by the engine.
type QuotaAPI interface {
	Fetch(ctx context.Context, accessToken, projectID string) (FetchResult, error)
}

// API calls the model availability endpoint.
type API struct {
	endpoints []string
	http      *http.Client
}

// NewAPI returns a client over the production endpoints.
func NewAPI() *API {
	return &API{
		endpoints: defaultEndpoints,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

// fetchModelsResponse is the upstream model availability payload.
type fetchModelsResponse struct {
	Models map[string]struct {
		DisplayName string `json:"displayName"`
		QuotaInfo   struct {
			RemainingFraction float64 `json:"remainingFraction"`
			ResetTime         string  `json:"resetTime"`
		} `json:"quotaInfo"`
	} `json:"models"`
	CloudAICompanionProject string            `json:"cloudaicompanionProject,omitempty"`
	ModelForwardingRules    map[string]string `json:"modelForwardingRules,omitempty"`
}

// Fetch retrieves quota for the token, trying each endpoint in order.
// 401 and 403 are returned immediately as *StatusError since they carry
// auth semantics that retrying another endpoint cannot fix.
func (a *API) Fetch(ctx context.Context, accessToken, projectID string) (FetchResult, error) {
	if accessToken == "" {
		return FetchResult{}, fmt.Errorf("access token is empty")
	}

	payload := map[string]string{}
	if projectID != "" {
		payload["cloudaicompanionProject"] = projectID
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return FetchResult{}, fmt.Errorf("failed to encode quota request: %w", err)
	}

	var lastErr error
	for _, endpoint := range a.endpoints {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+fetchModelsPath, bytes.NewReader(reqBody))
		if err != nil {
			lastErr = fmt.Errorf("failed to create quota request: %w", err)
			continue
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", uagent.UserAgent())
		req.Header.Set("X-Goog-Api-Client", "google-cloud-sdk vscode_cloudshelleditor/0.1")
		req.Header.Set("Client-Metadata", `{"ideType":"IDE_UNSPECIFIED","platform":"PLATFORM_UNSPECIFIED","pluginType":"GEMINI"}`)

		resp, err := a.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("quota request failed: %w", err)
			continue
		}
		body, err := io.ReadAll(resp.Body)
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Error("failed to close response body", "error", cerr)
		}
		if err != nil {
			lastErr = fmt.Errorf("failed to read quota response: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return FetchResult{}, &StatusError{Code: resp.StatusCode, Body: string(body)}
		case resp.StatusCode != http.StatusOK:
			lastErr = &StatusError{Code: resp.StatusCode, Body: string(body)}
			continue
		}

		var parsed fetchModelsResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			lastErr = fmt.Errorf("failed to parse quota response: %w", err)
			continue
		}
		return buildResult(parsed), nil
	}

	if lastErr != nil {
		return FetchResult{}, lastErr
	}
	return FetchResult{}, fmt.Errorf("failed to fetch quota from any endpoint")
}

func buildResult(parsed fetchModelsResponse) FetchResult {
	quota := models.NewQuotaData()
	var earliestReset time.Time

	for name, data := range parsed.Models {
		pct := int(math.Round(data.QuotaInfo.RemainingFraction * 100))
		quota.Models = append(quota.Models, models.ModelQuota{Name: name, Percentage: pct})

		if data.QuotaInfo.ResetTime != "" {
			if reset, err := time.Parse(time.RFC3339, data.QuotaInfo.ResetTime); err == nil {
				if earliestReset.IsZero() || reset.Before(earliestReset) {
					earliestReset = reset
				}
			}
		}
	}
	quota.SubscriptionTier = string(detectTier(earliestReset))
	if parsed.ModelForwardingRules != nil {
		quota.ModelForwardingRules = parsed.ModelForwardingRules
	}
	return FetchResult{Quota: quota, ProjectID: parsed.CloudAICompanionProject}
}
