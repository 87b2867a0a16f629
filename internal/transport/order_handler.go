package transport

import (
	"net/http"

	"printlink-be/internal/access"
	"printlink-be/internal/apperr"
	"printlink-be/internal/auth"
	"printlink-be/internal/order"
	"printlink-be/internal/redemption"
	"printlink-be/internal/utils"
)

type OrderHandler struct {
	orders   order.Service
	verifier *redemption.Verifier
	access   *access.Service
}

func NewOrderHandler(orders order.Service, verifier *redemption.Verifier, access *access.Service) *OrderHandler {
	return &OrderHandler{orders: orders, verifier: verifier, access: access}
}

// orderRequest accepts both orderId and the older uploadId/otp names.
type orderRequest struct {
	OrderID  string `json:"orderId"`
	UploadID string `json:"uploadId"`
	Code     string `json:"code"`
	OTP      string `json:"otp"`
}

func (req orderRequest) id() string {
	if req.OrderID != "" {
		return req.OrderID
	}
	return req.UploadID
}

func (req orderRequest) code() string {
	if req.Code != "" {
		return req.Code
	}
	return req.OTP
}

func (h *OrderHandler) decode(w http.ResponseWriter, r *http.Request) (orderRequest, bool) {
	var req orderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return req, false
	}
	if req.id() == "" {
		WriteError(w, r, apperr.Validation("orderId is required"))
		return req, false
	}
	return req, true
}

func callerID(r *http.Request) string {
	if u := auth.CurrentUser(r.Context()); u != nil {
		return u.ID
	}
	return ""
}

// Access handles POST /orders/access.
func (h *OrderHandler) Access(w http.ResponseWriter, r *http.Request) {
	user := auth.CurrentUser(r.Context())
	if user == nil {
		WriteError(w, r, access.ErrUnauthorized)
		return
	}

	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	grant, err := h.access.GrantAccess(r.Context(), req.id(), user)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, grant)
}

// Redeem handles POST /orders/redeem.
func (h *OrderHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	if req.code() == "" {
		WriteError(w, r, apperr.Validation("code is required"))
		return
	}

	o, err := h.verifier.Redeem(r.Context(), req.id(), req.code())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"order":   toOrderResponse(o, callerID(r)),
	})
}

// Complete handles POST /orders/complete for the shop owner.
func (h *OrderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	o, err := h.orders.MarkReady(r.Context(), req.id(), callerID(r))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"order": toOrderResponse(o, callerID(r))})
}

// Cancel handles POST /orders/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	o, err := h.orders.Cancel(r.Context(), req.id(), callerID(r))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"order": toOrderResponse(o, callerID(r))})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	o, err := h.orders.GetForCaller(r.Context(), r.PathValue("id"), caller)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"order": toOrderResponse(o, caller)})
}
