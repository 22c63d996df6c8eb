package service

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apphttp "github.com/chainsafe/qtx-rewards/pkg/app/http"
	"github.com/chainsafe/qtx-rewards/pkg/auth"
	"github.com/chainsafe/qtx-rewards/pkg/reward"
)

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service Service
	logger  *zap.Logger
}

// RegisterRoutes registers the authenticated reward and purchase endpoints.
// The router must run auth.Middleware.
func RegisterRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Post("/rewards/farm/claim", apphttp.HandleError(h.claimFarm))
	r.Get("/rewards/farm/status", apphttp.HandleError(h.farmStatus))
	r.Post("/rewards/daily-checkin", apphttp.HandleError(h.dailyCheckin))
	r.Post("/rewards/tasks/complete", apphttp.HandleError(h.completeTask))
	r.Post("/rewards/tasks/quotex-id", apphttp.HandleError(h.submitQuotexID))
	r.Post("/rewards/welcome", apphttp.HandleError(h.welcome))
	r.Post("/purchases/presale", apphttp.HandleError(h.purchasePresale))
	r.Post("/purchases/boost", apphttp.HandleError(h.purchaseBoost))
}

// RegisterPublicRoutes registers endpoints that need no authentication
func RegisterPublicRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Get("/catalog", apphttp.HandleError(h.catalog))
}

func (h *HTTP) claimFarm(w http.ResponseWriter, r *http.Request) error {
	userID, err := auth.RequireUserID(r)
	if err != nil {
		return err
	}
	resp, err := h.service.ClaimFarm(r.Context(), userID)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) farmStatus(w http.ResponseWriter, r *http.Request) error {
	userID, err := auth.RequireUserID(r)
	if err != nil {
		return err
	}
	resp, err := h.service.FarmStatus(r.Context(), userID)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) dailyCheckin(w http.ResponseWriter, r *http.Request) error {
	userID, err := auth.RequireUserID(r)
	if err != nil {
		return err
	}
	resp, err := h.service.ClaimDailyCheckin(r.Context(), userID)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) completeTask(w http.ResponseWriter, r *http.Request) error {
	userID, err := auth.RequireUserID(r)
	if err != nil {
		return err
	}
	var req reward.CompleteTaskRequest
	if err := apphttp.DecodeJSON(r, &req, false); err != nil {
		return err
	}
	resp, err := h.service.CompleteTask(r.Context(), userID, &req)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) submitQuotexID(w http.ResponseWriter, r *http.Request) error {
	userID, err := auth.RequireUserID(r)
	if err != nil {
		return err
	}
	var req reward.QuotexSubmissionRequest
	if err := apphttp.DecodeJSON(r, &req, false); err != nil {
		return err
	}
	resp, err := h.service.SubmitQuotexID(r.Context(), userID, &req)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusAccepted, resp)
	return nil
}

func (h *HTTP) welcome(w http.ResponseWriter, r *http.Request) error {
	userID, err := auth.RequireUserID(r)
	if err != nil {
		return err
	}
	resp, err := h.service.ClaimWelcomeReward(r.Context(), userID)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) purchasePresale(w http.ResponseWriter, r *http.Request) error {
	userID, err := auth.RequireUserID(r)
	if err != nil {
		return err
	}
	var req reward.PresaleRequest
	if err := apphttp.DecodeJSON(r, &req, false); err != nil {
		return err
	}
	resp, err := h.service.PurchasePresale(r.Context(), userID, &req)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) purchaseBoost(w http.ResponseWriter, r *http.Request) error {
	userID, err := auth.RequireUserID(r)
	if err != nil {
		return err
	}
	var req reward.BoostPurchaseRequest
	if err := apphttp.DecodeJSON(r, &req, false); err != nil {
		return err
	}
	resp, err := h.service.PurchaseBoost(r.Context(), userID, &req)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) catalog(w http.ResponseWriter, r *http.Request) error {
	resp, err := h.service.Catalog(r.Context())
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}
