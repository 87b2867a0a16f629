// Package transport adapts HTTP requests to the domain services.
package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"printlink-be/internal/apperr"
	"printlink-be/internal/logger"
	"printlink-be/internal/order"
	"printlink-be/internal/utils"

	"go.uber.org/zap"
)

const maxJSONBody = 1 << 20

// WriteError renders err as {"error", "code"} with the status of its code.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	log := logger.FromCtx(r.Context()).With(zap.String("path", r.URL.Path), zap.Error(err))

	switch {
	case apperr.CodeOf(err) == apperr.CodeMisconfigured:
		log.Error("server misconfigured")
	case status >= http.StatusInternalServerError:
		log.Error("request failed")
	default:
		log.Debug("request rejected", zap.Int("status", status))
	}

	utils.WriteJSONError(w, apperr.MessageOf(err), string(apperr.CodeOf(err)), status)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is empty")
		}
		return apperr.Validation("invalid request body")
	}
	return nil
}

type OrderResponse struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	ShopID      string     `json:"shopId"`
	FileName    string     `json:"fileName"`
	FileSize    int64      `json:"fileSize"`
	ContentType string     `json:"contentType"`
	Pages       int        `json:"pages"`
	Copies      int        `json:"copies"`
	Color       bool       `json:"color"`
	Amount      string     `json:"amount"`
	Currency    string     `json:"currency"`
	Status      string     `json:"status"`
	PickupCode  *string    `json:"pickupCode,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	PaidAt      *time.Time `json:"paidAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CollectedAt *time.Time `json:"collectedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
}

// toOrderResponse maps o for viewerID. The pickup code is shown to the
// customer only.
func toOrderResponse(o *order.Order, viewerID string) OrderResponse {
	resp := OrderResponse{
		ID:          o.ID,
		UserID:      o.UserID,
		ShopID:      o.ShopID,
		FileName:    o.Document.Name,
		FileSize:    o.Document.Size,
		ContentType: o.Document.ContentType,
		Pages:       o.Options.Pages,
		Copies:      o.Options.Copies,
		Color:       o.Options.Color,
		Amount:      o.Amount.StringFixed(2),
		Currency:    o.Currency,
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
		PaidAt:      o.PaidAt,
		CompletedAt: o.CompletedAt,
		CollectedAt: o.CollectedAt,
		CancelledAt: o.CancelledAt,
	}
	if viewerID != "" && viewerID == o.UserID {
		resp.PickupCode = o.PickupCode
	}
	return resp
}
