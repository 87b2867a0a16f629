package transport

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"printlink-be/internal/apperr"
	"printlink-be/internal/auth"
	"printlink-be/internal/logger"
	"printlink-be/internal/order"
	"printlink-be/internal/upload"
	"printlink-be/internal/utils"

	"go.uber.org/zap"
)

// multipart overhead allowed on top of the file itself
const formSlack = 1 << 20

type UploadHandler struct {
	uploads *upload.Service
}

func NewUploadHandler(uploads *upload.Service) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

// Upload handles POST /uploads.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user := auth.CurrentUser(r.Context())
	if user == nil {
		WriteError(w, r, order.ErrUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, upload.MaxFileSize+formSlack)
	if err := r.ParseMultipartForm(upload.MaxFileSize + formSlack); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, r, upload.ErrTooLarge)
			return
		}
		WriteError(w, r, apperr.Validation("invalid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, r, upload.ErrNoFile)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !upload.AllowedType(contentType) {
		WriteError(w, r, upload.ErrUnsupportedType)
		return
	}
	if header.Size > upload.MaxFileSize {
		WriteError(w, r, upload.ErrTooLarge)
		return
	}

	opts, err := parsePrintOptions(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, upload.MaxFileSize+1))
	if err != nil {
		logger.FromCtx(r.Context()).Error("failed to read upload", zap.Error(err))
		WriteError(w, r, upload.ErrUploadFailed)
		return
	}

	o, err := h.uploads.Submit(r.Context(), user, upload.Input{
		FileName:    header.Filename,
		ContentType: contentType,
		Data:        data,
		ShopID:      r.FormValue("shopId"),
		Options:     opts,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"orderId":  o.ID,
		"fileName": o.Document.Name,
		"fileSize": o.Document.Size,
		"amount":   o.Amount.StringFixed(2),
		"currency": o.Currency,
		"message":  "File uploaded successfully",
	})
}

func parsePrintOptions(r *http.Request) (order.PrintOptions, error) {
	var opts order.PrintOptions
	var err error

	if v := r.FormValue("pages"); v != "" {
		if opts.Pages, err = strconv.Atoi(v); err != nil || opts.Pages < 1 {
			return opts, apperr.Validation("pages must be a positive number")
		}
	}
	if v := r.FormValue("copies"); v != "" {
		if opts.Copies, err = strconv.Atoi(v); err != nil || opts.Copies < 1 {
			return opts, apperr.Validation("copies must be a positive number")
		}
	}
	if v := r.FormValue("color"); v != "" {
		if opts.Color, err = strconv.ParseBool(v); err != nil {
			return opts, apperr.Validation("color must be true or false")
		}
	}
	return opts, nil
}
