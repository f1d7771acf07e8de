package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/tokvault-go/internal/core/domain"
	"github.com/yndnr/tokvault-go/internal/infra/buildinfo"
)

// ProbeResponse is the body of /health and /ready.
type ProbeResponse struct {
	Status  string `json:"status"`
	Time    string `json:"time"`
	Version string `json:"version,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

func (h *Handler) probe(status string) ProbeResponse {
	return ProbeResponse{
		Status:  status,
		Time:    time.Now().UTC().Format(time.RFC3339),
		Version: buildinfo.Get().Version,
		Uptime:  time.Since(h.started).Truncate(time.Second).String(),
	}
}

// Health answers as long as the process serves HTTP.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.probe("healthy"))
}

// Ready also requires the record store to respond.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			h.logger.WithContext(r.Context()).Warn("not ready", "error", err)
			h.fail(w, r, domain.ErrServiceUnavailable.WithDetails(err.Error()))
			return
		}
	}
	h.writeJSON(w, r, http.StatusOK, h.probe("ready"))
}
