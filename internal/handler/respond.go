// Package handler はBFFのHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/pertindetu/internal/middleware"
	"github.com/hitoshi/pertindetu/internal/model"
)

// maxBodyBytes はリクエストボディの上限。
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はボディをデコードする。失敗は VALIDATION_ERROR として返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return model.NewValidationError("invalid request body")
	}
	return nil
}

// decodeOptionalJSON は空のボディを許す decodeJSON。
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return model.NewValidationError("invalid request body")
	}
	return nil
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error",
		slog.String("error", err.Error()),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
	)
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation:
		return http.StatusBadRequest
	case model.ErrCodeInvalidTransition, model.ErrCodeCancelNotAllowed, model.ErrCodeRegistrationRejected:
		return http.StatusConflict
	case model.ErrCodeAuthenticationFailed, model.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case model.ErrCodeForbiddenAction, model.ErrCodeNotProvider:
		return http.StatusForbidden
	case model.ErrCodeOrderNotFound, model.ErrCodeReviewNotFound, model.ErrCodeServiceNotFound:
		return http.StatusNotFound
	case model.ErrCodeBackendUnavailable:
		return http.StatusServiceUnavailable
	case model.ErrCodeActionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// pathID はURLパラメータ name を正のIDとして解釈する。
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewValidationError("invalid " + name)
	}
	return id, nil
}

// pageRequest は page, size, sort クエリを読み取る。省略時はデフォルト値。
func pageRequest(r *http.Request) (model.PageRequest, error) {
	pr := model.DefaultPageRequest()
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return pr, model.NewValidationError("invalid page")
		}
		pr.Page = n
	}
	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return pr, model.NewValidationError("invalid size")
		}
		pr.Size = n
	}
	if v := q.Get("sort"); v != "" {
		pr.Sort = v
	}
	return pr.Normalize(), nil
}

// optionalStatus は空文字を許す状態の解釈。
func optionalStatus(s string) (model.OrderStatus, error) {
	if s == "" {
		return "", nil
	}
	st, err := model.ParseOrderStatus(s)
	if err != nil {
		return "", model.NewValidationError(err.Error())
	}
	return st, nil
}
