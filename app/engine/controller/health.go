package controller

import (
	"net/http"
)

func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := c.App.DB.Pool.Ping(r.Context()); err != nil {
		c.writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	c.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
