package transport

import (
	"net/http"

	"printlink-be/internal/apperr"
	"printlink-be/internal/auth"
	"printlink-be/internal/payment"
)

type PaymentHandler struct {
	payments payment.Service
}

func NewPaymentHandler(payments payment.Service) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Initiate handles POST /payments/initiate and answers with an HTML page that
// auto-submits the signed form to the gateway.
func (h *PaymentHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	user := auth.CurrentUser(r.Context())
	if user == nil {
		WriteError(w, r, apperr.ErrUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := r.ParseForm(); err != nil {
		WriteError(w, r, apperr.Validation("invalid form body"))
		return
	}

	orderID := firstNonEmpty(r.PostFormValue("orderId"), r.PostFormValue("uploadId"), r.PostFormValue("udf1"))
	if orderID == "" {
		WriteError(w, r, apperr.Validation("orderId is required"))
		return
	}

	form, err := h.payments.Initiate(r.Context(), payment.InitiateInput{
		OrderID:     orderID,
		CallerID:    user.ID,
		TxnID:       r.PostFormValue("txnid"),
		Amount:      r.PostFormValue("amount"),
		ProductInfo: r.PostFormValue("productinfo"),
		Payer: payment.Payer{
			FirstName: firstNonEmpty(r.PostFormValue("firstname"), user.FullName),
			Email:     firstNonEmpty(r.PostFormValue("email"), user.Email),
			Phone:     r.PostFormValue("phone"),
		},
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}

	page, err := form.Render()
	if err != nil {
		WriteError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(page)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
