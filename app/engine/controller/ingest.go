package controller

import (
	"context"
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
	"go.uber.org/zap"

	models "github.com/openrounds/roundsx/pkg/db/models/grants"
)

type ingestRequest struct {
	Organization *models.Organization       `json:"organization,omitempty"`
	Projects     []*models.Project          `json:"projects,omitempty"`
	Rewards      []*models.RecurringReward  `json:"rewards,omitempty"`
	Flows        []*models.SuperfluidStream `json:"flows,omitempty"`
}

// HandleIngest upserts a snapshot pushed by the upstream onboarding and
// payout-calculation systems: organization, projects, recurring rewards and
// mirrored money-flow records. One transaction, so a partially applied
// snapshot is never observable by a concurrent stream recomputation.
func (c *Controller) HandleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	for _, reward := range req.Rewards {
		if reward.Tranche < 0 {
			c.writeError(w, http.StatusBadRequest, "reward "+reward.ID+" has negative tranche")
			return
		}
	}

	err := c.App.Store.InTx(r.Context(), func(ctx context.Context) error {
		if req.Organization != nil {
			if err := c.App.Store.InsertOrganization(ctx, req.Organization); err != nil {
				return err
			}
		}
		if err := c.App.Store.InsertProjects(ctx, req.Projects); err != nil {
			return err
		}
		if err := c.App.Store.InsertRecurringRewards(ctx, req.Rewards); err != nil {
			return err
		}
		return c.App.Store.InsertSuperfluidStreams(ctx, req.Flows)
	})
	if err != nil {
		c.App.Logger.Error("Ingest failed", zap.Error(err))
		c.writeError(w, http.StatusInternalServerError, "ingest failed, try again or contact support")
		return
	}

	c.App.Logger.Info("Ingested snapshot",
		zap.Int("projects", len(req.Projects)),
		zap.Int("rewards", len(req.Rewards)),
		zap.Int("flows", len(req.Flows)))

	c.writeJSON(w, http.StatusOK, map[string]any{
		"projects": len(req.Projects),
		"rewards":  len(req.Rewards),
		"flows":    len(req.Flows),
	})
}
