package service

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/chainsafe/qtx-rewards/pkg/account"
	apperrors "github.com/chainsafe/qtx-rewards/pkg/app/errors"
	apphttp "github.com/chainsafe/qtx-rewards/pkg/app/http"
	"github.com/chainsafe/qtx-rewards/pkg/auth"
)

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service Service
	logger  *zap.Logger
}

// RegisterRoutes registers account and wallet endpoints on the given chi router.
// The router must run auth.Middleware.
func RegisterRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Post("/accounts", apphttp.HandleError(h.register))
	r.Get("/accounts/me", apphttp.HandleError(h.profile))
	r.Get("/accounts/me/stats", apphttp.HandleError(h.stats))
	r.Get("/accounts/me/transactions", apphttp.HandleError(h.transactions))
	r.Post("/wallet/connect", apphttp.HandleError(h.connectWallet))
	r.Get("/wallet", apphttp.HandleError(h.wallet))
	r.Post("/wallet/payment-request", apphttp.HandleError(h.paymentRequest))
}

func (h *HTTP) register(w http.ResponseWriter, r *http.Request) error {
	userID, err := auth.RequireUserID(r)
	if err != nil {
		return err
	}
	var req account.RegisterRequest
	if err := apphttp.DecodeJSON(r, &req, true); err != nil {
		return err
	}
	resp, err := h.service.Register(r.Context(), userID, &req)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) profile(w http.ResponseWriter, r *http.Request) error {
	userID, err := auth.RequireUserID(r)
	if err != nil {
		return err
	}
	resp, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) stats(w http.ResponseWriter, r *http.Request) error {
	userID, err := auth.RequireUserID(r)
	if err != nil {
		return err
	}
	resp, err := h.service.GetStats(r.Context(), userID)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) transactions(w http.ResponseWriter, r *http.Request) error {
	userID, err := auth.RequireUserID(r)
	if err != nil {
		return err
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return apperrors.BadRequestError(err, "invalid limit")
		}
	}

	txs, err := h.service.ListTransactions(r.Context(), userID, limit)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, map[string]any{"transactions": txs})
	return nil
}

func (h *HTTP) connectWallet(w http.ResponseWriter, r *http.Request) error {
	userID, err := auth.RequireUserID(r)
	if err != nil {
		return err
	}
	var req account.ConnectWalletRequest
	if err := apphttp.DecodeJSON(r, &req, false); err != nil {
		return err
	}
	resp, err := h.service.ConnectWallet(r.Context(), userID, &req)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) wallet(w http.ResponseWriter, r *http.Request) error {
	userID, err := auth.RequireUserID(r)
	if err != nil {
		return err
	}
	resp, err := h.service.GetWallet(r.Context(), userID)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}

func (h *HTTP) paymentRequest(w http.ResponseWriter, r *http.Request) error {
	userID, err := auth.RequireUserID(r)
	if err != nil {
		return err
	}
	var req account.PaymentRequest
	if err := apphttp.DecodeJSON(r, &req, false); err != nil {
		return err
	}
	resp, err := h.service.PaymentRequest(r.Context(), userID, &req)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, resp)
	return nil
}
