package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	apperrors "parkingreserve/internal/errors"
	"parkingreserve/internal/service"
)

type AdminAuthHandler struct {
	service service.AdminAuthService
	log     logrus.FieldLogger
}

func NewAdminAuthHandler(svc service.AdminAuthService, log logrus.FieldLogger) *AdminAuthHandler {
	return &AdminAuthHandler{service: svc, log: log}
}

func (h *AdminAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, h.log, apperrors.ErrBadRequest("Invalid request body"))
		return
	}

	token, err := h.service.Login(req.Email, req.Password)
	if errors.Is(err, service.ErrAuthNotConfigured) {
		h.log.Warn("admin login attempted but JWT_SECRET is not configured")
		writeError(w, r, h.log, apperrors.ErrUnauthorized("Invalid credentials"))
		return
	}
	if err != nil {
		writeError(w, r, h.log, apperrors.ErrUnauthorized("Invalid credentials"))
		return
	}
	writeSuccess(w, http.StatusOK, LoginResponse{Token: token})
}
