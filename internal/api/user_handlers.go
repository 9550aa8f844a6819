package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"parkingreserve/internal/entities"
	apperrors "parkingreserve/internal/errors"
)

type UserReservationHandler struct {
	Service ReservationService
	log     logrus.FieldLogger
}

func NewUserReservationHandler(svc ReservationService, log logrus.FieldLogger) *UserReservationHandler {
	return &UserReservationHandler{Service: svc, log: log}
}

func (h *UserReservationHandler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var body createReservationBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, h.log, apperrors.ErrBadRequest("Invalid request body"))
		return
	}

	req := entities.ReservationRequest{
		LicensePlate: body.LicensePlate,
		ContactEmail: body.ContactEmail,
		ContactPhone: body.ContactPhone,
		Language:     body.Language,
	}
	if body.StartTime != "" {
		start, ok := parseTimestamp(body.StartTime)
		if !ok {
			writeError(w, r, h.log, &apperrors.HTTPError{
				Code:    http.StatusBadRequest,
				Message: "Validation error",
				Fields:  map[string]string{"startTime": "Start time must be an ISO-8601 timestamp"},
			})
			return
		}
		req.StartTime = start
	}

	res, err := h.Service.CreateReservation(r.Context(), req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeSuccess(w, http.StatusCreated, entities.NewReservationResponse(*res))
}

func (h *UserReservationHandler) GetReservation(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.GetReservation(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeSuccess(w, http.StatusOK, entities.NewReservationResponse(*res))
}

func (h *UserReservationHandler) ListReservations(w http.ResponseWriter, r *http.Request) {
	all, err := h.Service.ListReservations(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeSuccess(w, http.StatusOK, entities.NewReservationsList(all, h.Service.TotalSpaces()))
}

func (h *UserReservationHandler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.CancelReservation(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"message": "Reservation cancelled"})
}

func (h *UserReservationHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("start")
	start, ok := parseTimestamp(raw)
	if !ok {
		writeError(w, r, h.log, &apperrors.HTTPError{
			Code:    http.StatusBadRequest,
			Message: "Validation error",
			Fields:  map[string]string{"start": "start must be an ISO-8601 timestamp"},
		})
		return
	}
	avail, err := h.Service.Availability(r.Context(), start)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeSuccess(w, http.StatusOK, avail)
}

func (h *UserReservationHandler) Spaces(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, entities.SpacesSummary{
		TotalSpaces:   h.Service.TotalSpaces(),
		CapacityLimit: h.Service.CapacityLimit(),
	})
}
