package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/pertindetu/internal/model"
)

// AccountServiceInterface は登録ハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	Register(ctx context.Context, reg model.Registration) (int64, error)
}

// AccountHandler は新規ユーザー登録のHTTPハンドラー。
type AccountHandler struct {
	service AccountServiceInterface
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service AccountServiceInterface) *AccountHandler {
	return &AccountHandler{service: service}
}

type registerRequest struct {
	Name            string        `json:"name"`
	Email           string        `json:"email"`
	Password        string        `json:"password"`
	CellphoneNumber string        `json:"cellphoneNumber"`
	Address         model.Address `json:"address"`
}

type registerResponse struct {
	UserID int64 `json:"userId"`
}

// Register は新規ユーザーを登録する。セッションは発行しない。
// POST /auth/register
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	userID, err := h.service.Register(r.Context(), model.Registration{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		CellphoneNumber: req.CellphoneNumber,
		Address:         req.Address,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{UserID: userID})
}
