package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/boddenberg/finance-tracker-go/internal/domain"
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

const maxBodyBytes = 1 << 20

// bindJSON decodes the request body into dst. On failure it answers 400 and
// returns false.
func bindJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// queryDate reads an optional YYYY-MM-DD parameter. Absent yields zero time.
func queryDate(r *http.Request, key string) (time.Time, error) {
	t, err := domain.ParseDate(r.URL.Query().Get(key))
	if err != nil {
		return time.Time{}, &domain.ErrValidation{Field: key, Message: "invalid format, use YYYY-MM-DD"}
	}
	return t, nil
}

func queryDecimal(r *http.Request, key string) (decimal.NullDecimal, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.NullDecimal{}, &domain.ErrValidation{Field: key, Message: "must be a number"}
	}
	return decimal.NewNullDecimal(d), nil
}

// parseTransactionQuery maps listing query parameters. "ALL" or an absent
// value disables the category filters.
func parseTransactionQuery(r *http.Request) (domain.TransactionQuery, error) {
	var q domain.TransactionQuery
	var err error

	if q.From, err = queryDate(r, "from"); err != nil {
		return q, err
	}
	if q.To, err = queryDate(r, "to"); err != nil {
		return q, err
	}

	params := r.URL.Query()
	if v := params.Get("categoryType"); v != "" && !strings.EqualFold(v, "ALL") {
		ct, ok := domain.ParseCategoryType(v)
		if !ok {
			return q, &domain.ErrValidation{Field: "categoryType", Message: "must be INCOME, EXPENSE or ALL"}
		}
		q.CategoryType = ct
	}
	if v := params.Get("categoryName"); v != "" && !strings.EqualFold(v, "ALL") {
		cn, ok := domain.ParseCategoryName(v)
		if !ok {
			return q, &domain.ErrValidation{Field: "categoryName", Message: "unknown category " + v}
		}
		q.CategoryName = cn
	}
	q.Name = params.Get("name")
	q.PaymentMode = params.Get("paymentMode")
	q.Note = params.Get("note")

	if q.MinAmount, err = queryDecimal(r, "minAmount"); err != nil {
		return q, err
	}
	if q.MaxAmount, err = queryDecimal(r, "maxAmount"); err != nil {
		return q, err
	}
	return q, nil
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var validation *domain.ErrValidation
	var conflict *domain.ErrConflict
	var unauthorized *domain.ErrUnauthorized
	var invalidArg *domain.ErrInvalidArgument

	switch {
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &conflict):
		logger.Debug("conflict", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &invalidArg):
		// helpers were handed something the request layer should have rejected
		logger.Error("invalid argument", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
