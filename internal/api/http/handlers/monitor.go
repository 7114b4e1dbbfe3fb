package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pumpwatch/internal/service"
	"pumpwatch/pkg/httputil"
)

// Rankings returns the boards from the most recent completed cycle.
func (h *Handler) Rankings(w http.ResponseWriter, r *http.Request) {
	if err := httputil.JSON(w, http.StatusOK, h.Monitor.Rankings(), nil); err != nil {
		h.Log.Errorf("Rankings handler error: %s", err.Error())
	}
}

func (h *Handler) TokenStats(w http.ResponseWriter, r *http.Request) {
	mint := chi.URLParam(r, "mint")

	stats, err := h.Monitor.TokenStats(mint, time.Now())
	if err != nil {
		if errors.Is(err, service.ErrTokenNotFound) {
			if err = httputil.Error(w, r, http.StatusNotFound, "token_not_found", "token not tracked in current epoch", nil); err != nil {
				h.Log.Errorf("TokenStats handler error: %s", err.Error())
			}
			return
		}

		if err = httputil.Error(w, r, http.StatusInternalServerError, "internal", "failed to read token stats", nil); err != nil {
			h.Log.Errorf("TokenStats handler error: %s", err.Error())
		}
		return
	}

	if err = httputil.JSON(w, http.StatusOK, stats, nil); err != nil {
		h.Log.Errorf("TokenStats handler error: %s", err.Error())
	}
}

// Peaks returns every peak snapshot recorded since startup.
func (h *Handler) Peaks(w http.ResponseWriter, r *http.Request) {
	if err := httputil.JSON(w, http.StatusOK, h.Monitor.Peaks(), nil); err != nil {
		h.Log.Errorf("Peaks handler error: %s", err.Error())
	}
}

func (h *Handler) Alert(w http.ResponseWriter, r *http.Request) {
	if err := httputil.JSON(w, http.StatusOK, h.Monitor.AlertState(), nil); err != nil {
		h.Log.Errorf("Alert handler error: %s", err.Error())
	}
}

// Reset wipes all epoch state on demand; peaks survive.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	h.Monitor.ResetEpoch(r.Context(), time.Now())
	h.Log.Infof("Epoch reset requested over HTTP")

	if err := httputil.JSON(w, http.StatusOK, map[string]string{"state": "reset"}, nil); err != nil {
		h.Log.Errorf("Reset handler error: %s", err.Error())
	}
}
