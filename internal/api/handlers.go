package api

import (
	"log/slog"
	"net/http"

	"github.com/gymbro/gymbot/internal/models"
)

// healthHandler reports service liveness.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("GymBot is running", nil))
}

// bookingsHandler lists the class bookings registered through the dialog flow.
func (s *Server) bookingsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	bookings, err := s.st.ListBookings()
	if err != nil {
		slog.Error("Server.bookingsHandler: failed to list bookings", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list bookings"))
		return
	}
	slog.Debug("Server.bookingsHandler: bookings listed", "count", len(bookings))
	writeJSONResponse(w, http.StatusOK, models.Success(bookings))
}

// pausesHandler lists membership pause requests collected by the pause flow.
func (s *Server) pausesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	pauses, err := s.st.ListPauseRequests()
	if err != nil {
		slog.Error("Server.pausesHandler: failed to list pause requests", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list pause requests"))
		return
	}
	slog.Debug("Server.pausesHandler: pause requests listed", "count", len(pauses))
	writeJSONResponse(w, http.StatusOK, models.Success(pauses))
}
