// Package webhook receives the payment gateway's callbacks. Nothing in a
// callback is trusted before its signature or digest has been verified.
package webhook

import (
	"io"
	"net/http"
	"net/url"
	"strings"

	"printlink-be/internal/apperr"
	"printlink-be/internal/logger"
	"printlink-be/internal/payment"
	"printlink-be/internal/transport"
	"printlink-be/internal/utils"

	"go.uber.org/zap"
)

const (
	SignatureHeader = "X-Razorpay-Signature"
	EventIDHeader   = "X-Razorpay-Event-Id"

	maxWebhookBody = 1 << 20
)

type Handler struct {
	payments payment.Service
	siteURL  string
}

func NewWebhookHandler(payments payment.Service, siteURL string) *Handler {
	return &Handler{payments: payments, siteURL: strings.TrimRight(siteURL, "/")}
}

// PaymentWebhookHandler handles POST /payments/webhook.
func (h *Handler) PaymentWebhookHandler(w http.ResponseWriter, r *http.Request) {
	log := logger.FromCtx(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		log.Warn("failed to read webhook body", zap.Error(err))
		transport.WriteError(w, r, payment.ErrInvalidSignature)
		return
	}

	res, err := h.payments.HandleWebhook(r.Context(), body, r.Header.Get(SignatureHeader), r.Header.Get(EventIDHeader))
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}

	status := "processed"
	switch {
	case res.Duplicate:
		status = "duplicate"
	case res.Ignored:
		status = "ignored"
	case res.Failed:
		status = "payment_failed"
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": status, "eventId": res.EventID})
}

// ReturnHandler handles the payer's POST back from the gateway, on both the
// success and failure URLs, and redirects to the order page.
func (h *Handler) ReturnHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
	if err := r.ParseForm(); err != nil {
		transport.WriteError(w, r, apperr.Validation("invalid form body"))
		return
	}

	res, err := h.payments.HandleReturn(r.Context(), returnFields(r.PostForm))
	if err != nil {
		transport.WriteError(w, r, err)
		return
	}

	outcome := "failed"
	if res.Captured {
		outcome = "success"
	}
	target := h.siteURL + "/orders/" + url.PathEscape(res.OrderID) + "?payment=" + outcome
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func returnFields(form url.Values) payment.ReturnFields {
	return payment.ReturnFields{
		HashFields: payment.HashFields{
			TxnID:       form.Get("txnid"),
			Amount:      form.Get("amount"),
			ProductInfo: form.Get("productinfo"),
			FirstName:   form.Get("firstname"),
			Email:       form.Get("email"),
			UDF: [5]string{
				form.Get("udf1"),
				form.Get("udf2"),
				form.Get("udf3"),
				form.Get("udf4"),
				form.Get("udf5"),
			},
		},
		Key:        form.Get("key"),
		Status:     form.Get("status"),
		Hash:       form.Get("hash"),
		GatewayRef: form.Get("mihpayid"),
	}
}
