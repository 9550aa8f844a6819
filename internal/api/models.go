package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"parkingreserve/internal/db"
	"parkingreserve/internal/entities"
	apperrors "parkingreserve/internal/errors"
)

// ReservationService is the part of the admission controller the HTTP layer depends on.
type ReservationService interface {
	CreateReservation(ctx context.Context, req entities.ReservationRequest) (*db.Reservation, error)
	CancelReservation(ctx context.Context, id string) error
	GetReservation(ctx context.Context, id string) (*db.Reservation, error)
	ListReservations(ctx context.Context) ([]db.Reservation, error)
	Availability(ctx context.Context, start time.Time) (*entities.AvailabilityResponse, error)
	Stats(ctx context.Context) (entities.AdmissionStats, error)
	TotalSpaces() int
	CapacityLimit() int
}

// createReservationBody is the wire form of a create request; the start time is parsed by hand so
// a malformed value can be reported against its field.
type createReservationBody struct {
	StartTime    string `json:"startTime"`
	LicensePlate string `json:"licensePlate"`
	ContactEmail string `json:"contactEmail"`
	ContactPhone string `json:"contactPhone"`
	Language     string `json:"language"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

// parseTimestamp accepts RFC 3339, or a zone-less local timestamp interpreted as UTC.
func parseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, entities.Success(data))
}

// writeError maps err to its status and envelope. Server-side failures are logged with the
// original error since the client only sees the generic message.
func writeError(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, err error) {
	httpErr := apperrors.FromError(err)
	if httpErr.Code >= http.StatusInternalServerError {
		log.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
	}
	writeJSON(w, httpErr.Code, failureOf(httpErr))
}

func failureOf(httpErr *apperrors.HTTPError) entities.APIResponse {
	return entities.Failure(httpErr.Message, httpErr.Code, httpErr.Fields)
}
