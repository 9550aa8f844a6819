package api

import (
	"io"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"parkingreserve/internal/auth"
	apperrors "parkingreserve/internal/errors"
	"parkingreserve/internal/service"
)

type RouterDeps struct {
	Reservations ReservationService
	AdminAuth    service.AdminAuthService
	JWTSecret    string
	// Limiter guards reservation creation; nil disables rate limiting.
	Limiter *ClientLimiter
	// EventFeed serves the websocket reservation feed; nil leaves /ws unrouted.
	EventFeed http.HandlerFunc
	// AccessLog receives combined-format access lines; nil disables access logging.
	AccessLog io.Writer
	Log       logrus.FieldLogger
}

func NewRouter(deps RouterDeps) http.Handler {
	userHandler := NewUserReservationHandler(deps.Reservations, deps.Log)
	adminHandler := NewAdminHandler(deps.Reservations, deps.Log)
	adminAuthHandler := NewAdminAuthHandler(deps.AdminAuth, deps.Log)

	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	// Public endpoints
	parking := r.PathPrefix("/api/parking").Subrouter()
	var create http.Handler = http.HandlerFunc(userHandler.CreateReservation)
	if deps.Limiter != nil {
		create = deps.Limiter.Middleware(create)
	}
	parking.Handle("/reservations", create).Methods(http.MethodPost)
	parking.HandleFunc("/reservations", userHandler.ListReservations).Methods(http.MethodGet)
	parking.HandleFunc("/availability", userHandler.CheckAvailability).Methods(http.MethodGet)
	parking.HandleFunc("/spaces", userHandler.Spaces).Methods(http.MethodGet)
	// keep the {id} routes last: mux drops a method mismatch when a later sibling misses on path
	parking.HandleFunc("/reservations/{id}", userHandler.GetReservation).Methods(http.MethodGet)
	parking.HandleFunc("/reservations/{id}", userHandler.CancelReservation).Methods(http.MethodDelete)

	if deps.EventFeed != nil {
		r.HandleFunc("/ws", deps.EventFeed)
	}

	r.HandleFunc("/admin/login", adminAuthHandler.Login).Methods(http.MethodPost)

	// Admin endpoints (protected)
	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(auth.AdminAuthMiddleware(deps.JWTSecret, func(w http.ResponseWriter, r *http.Request) {
		httpErr := apperrors.ErrUnauthorized("Unauthorized")
		writeJSON(w, httpErr.Code, failureOf(httpErr))
	}))
	admin.HandleFunc("/stats", adminHandler.Stats).Methods(http.MethodGet)
	admin.HandleFunc("/reservations", adminHandler.ListReservations).Methods(http.MethodGet)
	admin.HandleFunc("/reservations/{id}", adminHandler.AdminDeleteReservation).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, failureOf(apperrors.NewHTTPError(http.StatusNotFound, "Resource not found")))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, failureOf(apperrors.NewHTTPError(http.StatusMethodNotAllowed, "Method not allowed")))
	})

	var h http.Handler = r
	h = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)(h)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(deps.Log), handlers.PrintRecoveryStack(false))(h)
	if deps.AccessLog != nil {
		h = handlers.CombinedLoggingHandler(deps.AccessLog, h)
	}
	return h
}
