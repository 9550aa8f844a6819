package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"parkingreserve/internal/auth"
	"parkingreserve/internal/entities"
)

type AdminHandler struct {
	Service ReservationService
	log     logrus.FieldLogger
}

func NewAdminHandler(svc ReservationService, log logrus.FieldLogger) *AdminHandler {
	return &AdminHandler{Service: svc, log: log}
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.Stats(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeSuccess(w, http.StatusOK, stats)
}

func (h *AdminHandler) ListReservations(w http.ResponseWriter, r *http.Request) {
	all, err := h.Service.ListReservations(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeSuccess(w, http.StatusOK, entities.NewReservationsList(all, h.Service.TotalSpaces()))
}

func (h *AdminHandler) AdminDeleteReservation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.Service.CancelReservation(r.Context(), id); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	h.log.WithFields(logrus.Fields{
		"reservation_id": id,
		"admin":          auth.AdminEmail(r.Context()),
	}).Info("reservation cancelled by admin")
	writeSuccess(w, http.StatusOK, map[string]string{"message": "Reservation deleted"})
}
