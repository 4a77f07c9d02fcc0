package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ginjaninja78/sepacetamol/internal/types"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeAttachment sends content as a file download.
func writeAttachment(w http.ResponseWriter, contentType, filename string, content []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}

// handleError maps conversion errors to HTTP responses. Data errors are the
// client's to fix and keep their message; anything else is logged and hidden.
func handleError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &tooLarge):
		logger.Debug("upload too large", zap.Int64("limit", tooLarge.Limit))
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
	case types.IsUserError(err):
		logger.Debug("rejected input", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error("conversion failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// parseForm reads url-encoded and multipart bodies up to limit bytes.
func parseForm(w http.ResponseWriter, r *http.Request, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(limit); err != nil {
			return formError(err)
		}
		return nil
	}
	if err := r.ParseForm(); err != nil {
		return formError(err)
	}
	return nil
}

func formError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return &types.ConversionError{Op: "read form", Err: err}
}

// requiredValue returns the trimmed form value of name.
func requiredValue(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(r.FormValue(name))
	if v == "" {
		return "", missingField(name)
	}
	return v, nil
}

func missingField(name string) error {
	return &types.ConversionError{Op: "read form", Err: fmt.Errorf("%s is required", name)}
}
