package controller

import (
	"errors"
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	models "github.com/openrounds/roundsx/pkg/db/models/grants"
	"github.com/openrounds/roundsx/pkg/db/postgres"
	"github.com/openrounds/roundsx/pkg/lifecycle"
	"github.com/openrounds/roundsx/pkg/utils"
)

type createTeamRequest struct {
	OrgID         string `json:"orgId"`
	WalletAddress string `json:"walletAddress"`
}

// HandleCreateTeam obtains a new active KYC team for a wallet, reclaiming the
// address from a retired predecessor when needed.
func (c *Controller) HandleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var req createTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrgID == "" {
		c.writeError(w, http.StatusBadRequest, "missing orgId")
		return
	}

	team, err := c.App.Lifecycle.CreateOrReuse(r.Context(), req.OrgID, req.WalletAddress)
	if err != nil {
		switch {
		case errors.Is(err, lifecycle.ErrEmptyWallet):
			c.writeError(w, http.StatusBadRequest, lifecycle.ErrEmptyWallet.Error())
		case errors.Is(err, lifecycle.ErrWalletExists):
			c.writeError(w, http.StatusConflict, lifecycle.ErrWalletExists.Error())
		default:
			c.App.Logger.Error("Team creation failed",
				zap.String("org", req.OrgID),
				zap.Error(err))
			c.writeError(w, http.StatusInternalServerError, "team creation failed, try again or contact support")
		}
		return
	}

	c.writeJSON(w, http.StatusCreated, team)
}

// HandleRetireTeam transitions a team Active -> Retired.
func (c *Controller) HandleRetireTeam(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		c.writeError(w, http.StatusBadRequest, "invalid team id")
		return
	}

	if err := c.App.Lifecycle.Retire(r.Context(), id); err != nil {
		if errors.Is(err, lifecycle.ErrTeamNotFound) {
			c.writeError(w, http.StatusNotFound, "team not found")
			return
		}
		c.App.Logger.Error("Retire failed", zap.String("team", id.String()), zap.Error(err))
		c.writeError(w, http.StatusInternalServerError, "retire failed, try again or contact support")
		return
	}

	c.writeJSON(w, http.StatusOK, map[string]string{"status": "retired"})
}

type teamStatusResponse struct {
	ID              string `json:"id"`
	WalletAddress   string `json:"walletAddress"`
	State           string `json:"state"`
	Verified        bool   `json:"verified"`
	ReceivingPayout bool   `json:"receivingPayout"`
}

// HandleTeamStatus reports a team's lifecycle state, its compliance verdict
// and whether its wallet currently receives an active payout flow. The payout
// sender defaults to PAYOUT_SENDER and may be overridden per request.
func (c *Controller) HandleTeamStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		c.writeError(w, http.StatusBadRequest, "invalid team id")
		return
	}

	team, err := c.App.Store.TeamByID(r.Context(), id)
	if err != nil {
		if postgres.IsNoRows(err) {
			c.writeError(w, http.StatusNotFound, "team not found")
			return
		}
		c.App.Logger.Error("Team lookup failed", zap.String("team", id.String()), zap.Error(err))
		c.writeError(w, http.StatusInternalServerError, "team lookup failed, try again or contact support")
		return
	}

	verified, err := c.App.Lifecycle.Verified(r.Context(), team)
	if err != nil {
		c.App.Logger.Error("Compliance status check failed", zap.String("team", id.String()), zap.Error(err))
		c.writeError(w, http.StatusBadGateway, "compliance status unavailable")
		return
	}

	receiving := false
	if team.State() == models.TeamActive {
		sender := r.URL.Query().Get("sender")
		if sender == "" {
			sender = utils.Env("PAYOUT_SENDER", "")
		}
		if sender != "" {
			receiving, err = c.App.Lifecycle.ReceivingPayout(r.Context(), sender, team.WalletAddress)
			if err != nil {
				c.App.Logger.Error("Payout flow check failed", zap.String("team", id.String()), zap.Error(err))
				c.writeError(w, http.StatusBadGateway, "payout flow status unavailable")
				return
			}
		}
	}

	c.writeJSON(w, http.StatusOK, teamStatusResponse{
		ID:              team.ID.String(),
		WalletAddress:   team.WalletAddress,
		State:           team.State().String(),
		Verified:        verified,
		ReceivingPayout: receiving,
	})
}

// HandleTeamHistory lists an organization's team identities ordered by
// retirement, current identity last.
func (c *Controller) HandleTeamHistory(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["org"]

	teams, err := c.App.Lifecycle.WalletHistory(r.Context(), orgID)
	if err != nil {
		if errors.Is(err, lifecycle.ErrMultipleActive) {
			// Invariant violation: fatal for this request, never pick one.
			c.App.Logger.Error("Multiple active KYC teams detected", zap.String("org", orgID), zap.Error(err))
			c.writeError(w, http.StatusInternalServerError, "inconsistent team state, contact support")
			return
		}
		c.App.Logger.Error("History lookup failed", zap.String("org", orgID), zap.Error(err))
		c.writeError(w, http.StatusInternalServerError, "history lookup failed, try again or contact support")
		return
	}

	c.writeJSON(w, http.StatusOK, teams)
}
