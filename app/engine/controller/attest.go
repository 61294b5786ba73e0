package controller

import (
	"encoding/base64"
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
	"go.uber.org/zap"

	"github.com/openrounds/roundsx/pkg/attest"
)

type publishItem struct {
	SchemaID string `json:"schemaId"`
	Data     string `json:"data"` // base64 payload
	RefUID   string `json:"refUid,omitempty"`
}

type publishRequest struct {
	Items []publishItem `json:"items"`
}

type publishFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

type publishResponse struct {
	ExternalIDs []string         `json:"externalIds"`
	Failures    []publishFailure `json:"failures,omitempty"`
}

type revokeRequest struct {
	SchemaID    string   `json:"schemaId"`
	ExternalIDs []string `json:"externalIds"`
}

// HandleRevoke revokes previously published attestations under one schema.
func (c *Controller) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SchemaID == "" || len(req.ExternalIDs) == 0 {
		c.writeError(w, http.StatusBadRequest, "missing schemaId or externalIds")
		return
	}

	if err := c.App.Ledger.Revoke(r.Context(), req.SchemaID, req.ExternalIDs); err != nil {
		c.App.Logger.Error("Revoke failed",
			zap.String("schema", req.SchemaID),
			zap.Int("ids", len(req.ExternalIDs)),
			zap.Error(err))
		c.writeError(w, http.StatusBadGateway, "revoke failed, try again or contact support")
		return
	}

	c.writeJSON(w, http.StatusOK, map[string]any{"revoked": len(req.ExternalIDs)})
}

// HandlePublish submits fact records to the external ledger. The response
// always reports the full per-item outcome: callers act on the successful
// subset even when some leaves failed terminally.
func (c *Controller) HandlePublish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]attest.FactItem, 0, len(req.Items))
	for i, in := range req.Items {
		payload, err := base64.StdEncoding.DecodeString(in.Data)
		if err != nil {
			c.writeError(w, http.StatusBadRequest, "item "+in.SchemaID+" has invalid base64 payload")
			return
		}
		if in.SchemaID == "" {
			c.App.Logger.Warn("Publish item missing schema id", zap.Int("index", i))
			c.writeError(w, http.StatusBadRequest, "item missing schemaId")
			return
		}
		items = append(items, attest.FactItem{SchemaID: in.SchemaID, Payload: payload, RefUID: in.RefUID})
	}

	report, err := c.App.Publisher.Publish(r.Context(), items)
	resp := publishResponse{ExternalIDs: report.ExternalIDs}
	for _, f := range report.Failures {
		resp.Failures = append(resp.Failures, publishFailure{Index: f.Index, Error: f.Err.Error()})
	}

	if err != nil {
		if report.Succeeded() {
			// Aborted mid-flight (e.g. cancellation): no leaf failed
			// terminally, but ids the ledger already issued still go back to
			// the caller.
			c.App.Logger.Error("Publish aborted", zap.Error(err))
		} else {
			c.App.Logger.Error("Publish completed partially",
				zap.Int("items", len(items)),
				zap.Int("failed", len(report.Failures)),
				zap.Error(err))
		}
		c.writeJSON(w, http.StatusBadGateway, resp)
		return
	}

	c.writeJSON(w, http.StatusOK, resp)
}
