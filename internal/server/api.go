package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/voxbridge/voxbridge/internal/room"
)

// createRequest is the body of POST /api/rooms.
type createRequest struct {
	Language string `json:"language"`
	Name     string `json:"name"`
}

// createResponse carries the new room id and a shareable join link.
type createResponse struct {
	RoomID  string `json:"roomId"`
	JoinURL string `json:"joinUrl"`
}

// joinRequest is the body of POST /api/rooms/{id}/join.
type joinRequest struct {
	Language string `json:"language"`
	Name     string `json:"name"`
}

// joinResponse echoes the creator's details so the joiner's UI can show who
// it is talking to.
type joinResponse struct {
	RoomID          string `json:"roomId"`
	CreatorLanguage string `json:"creatorLanguage"`
	CreatorName     string `json:"creatorName"`
}

// apiError is the structured error body for all session endpoints.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// handleCreateRoom handles POST /api/rooms.
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.Language == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "language is required")
		return
	}

	info := s.registry.Create(req.Language, req.Name)
	writeJSON(w, http.StatusCreated, createResponse{
		RoomID:  info.ID,
		JoinURL: s.joinURL(info.ID),
	})
}

// handleJoinRoom handles POST /api/rooms/{id}/join.
func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.Language == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "language is required")
		return
	}

	info, err := s.registry.Join(id, req.Language, req.Name)
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, joinResponse{
		RoomID:          info.ID,
		CreatorLanguage: info.Initiator.Language,
		CreatorName:     info.Initiator.Name,
	})
}

// handleRoomInfo handles GET /api/rooms/{id}: a read-only projection of both
// slots for UI bootstrap.
func (s *Server) handleRoomInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		writeRegistryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleLeaveRoom handles DELETE /api/rooms/{id}: closes any live sockets and
// deletes the session record.
func (s *Server) handleLeaveRoom(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sinks, err := s.registry.Delete(id)
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	for _, sink := range sinks {
		if closer, ok := sink.(interface{ CloseNow() }); ok {
			closer.CloseNow()
		}
	}
	slog.Info("room left", "room_id", id, "closed_sockets", len(sinks))
	w.WriteHeader(http.StatusNoContent)
}

// joinURL builds the shareable link for a room. With no public base URL
// configured the link is relative.
func (s *Server) joinURL(roomID string) string {
	base := strings.TrimSuffix(s.publicBaseURL, "/")
	return base + "/join/" + roomID
}

// writeRegistryError maps registry sentinel errors onto HTTP status codes.
func writeRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, room.ErrNotFound):
		writeError(w, http.StatusNotFound, "room_not_found", err.Error())
	case errors.Is(err, room.ErrFull):
		writeError(w, http.StatusConflict, "room_full", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Error: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encoding response failed", "error", err)
	}
}
