package compliance

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-jose/go-jose/v4/json"

	"github.com/openrounds/roundsx/pkg/utils"
)

// StatusSource answers "are all members of this KYC team approved". Consumed
// by the team-lifecycle verification predicate; read-only.
type StatusSource interface {
	TeamApproved(ctx context.Context, teamID string) (bool, error)
}

// HTTPStatusClient queries the external compliance-status service.
type HTTPStatusClient struct {
	endpoint string
	client   *http.Client
}

// NewHTTPStatusClient reads KYC_STATUS_URL from the environment.
func NewHTTPStatusClient() *HTTPStatusClient {
	return &HTTPStatusClient{
		endpoint: utils.Env("KYC_STATUS_URL", "http://localhost:8090"),
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

type teamStatusResponse struct {
	TeamID   string `json:"teamId"`
	Approved bool   `json:"approved"`
}

// TeamApproved returns the compliance verdict for a team.
func (c *HTTPStatusClient) TeamApproved(ctx context.Context, teamID string) (bool, error) {
	payload, err := json.Marshal(map[string]string{"teamId": teamID})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/teams/status", bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}

	if resp.StatusCode >= 300 {
		_ = utils.DrainAndClose(resp.Body)
		return false, fmt.Errorf("compliance status http %d", resp.StatusCode)
	}

	var out teamStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		_ = utils.DrainAndClose(resp.Body)
		return false, err
	}
	if err := utils.DrainAndClose(resp.Body); err != nil {
		return false, err
	}
	return out.Approved, nil
}
