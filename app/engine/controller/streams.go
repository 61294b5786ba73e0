package controller

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/openrounds/roundsx/pkg/streams"
)

// HandleProcessStreams recomputes and upserts a round's reward streams.
func (c *Controller) HandleProcessStreams(w http.ResponseWriter, r *http.Request) {
	roundID := mux.Vars(r)["round"]
	if roundID == "" {
		c.writeError(w, http.StatusBadRequest, "missing round id")
		return
	}

	results, err := c.App.Processor.ProcessRound(r.Context(), roundID)
	if err != nil {
		if errors.Is(err, streams.ErrMalformedAmount) {
			c.App.Logger.Error("Malformed reward amount", zap.String("round", roundID), zap.Error(err))
			c.writeError(w, http.StatusBadRequest, "malformed reward amount")
			return
		}
		c.App.Logger.Error("Stream processing failed", zap.String("round", roundID), zap.Error(err))
		c.writeError(w, http.StatusInternalServerError, "stream processing failed, try again or contact support")
		return
	}

	if results == nil {
		results = []*streams.StreamResult{}
	}
	c.writeJSON(w, http.StatusOK, map[string]any{
		"roundId": roundID,
		"streams": results,
	})
}
