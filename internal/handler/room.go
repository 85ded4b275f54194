package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/duoquiz/duo-server/internal/audit"
	"github.com/duoquiz/duo-server/internal/middleware"
	"github.com/duoquiz/duo-server/internal/model"
	"github.com/duoquiz/duo-server/internal/service"
)

type RoomService interface {
	CreateRoom(ctx context.Context, userID string) (*model.Room, error)
	JoinRoom(ctx context.Context, userID, roomCode string) (*model.Room, error)
	GetRoom(ctx context.Context, roomID string) (*service.RoomView, error)
	UpdateRoomStatus(ctx context.Context, roomID, status string, currentQuiz *string) (*model.Room, error)
	SubmitQuizAnswers(ctx context.Context, userID, roomID, quizID string, answers []model.AnswerInput) (*model.Room, error)
	LeaveRoom(ctx context.Context, userID, roomID string) (bool, error)
	ListMyRooms(ctx context.Context, userID string) ([]model.Room, error)
}

type RoomHandler struct {
	rooms RoomService
}

func NewRoomHandler(rooms RoomService) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

// Routes expects the auth gate to run before it.
func (h *RoomHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/create", h.Create)
	r.Post("/join", h.Join)
	r.Get("/mine", h.ListMine)
	r.Get("/{roomId}", h.Get)
	r.Put("/{roomId}/status", h.UpdateStatus)
	r.Post("/{roomId}/answers", h.SubmitAnswers)
	r.Post("/{roomId}/leave", h.Leave)

	return r
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	room, err := h.rooms.CreateRoom(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventRoomCreate,
		UserID:  userID,
		RoomID:  room.ID,
		Details: map[string]any{"roomCode": room.RoomCode},
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"roomCode": room.RoomCode,
		"roomId":   room.ID,
		"message":  "Room created successfully",
	})
}

func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req struct {
		RoomCode string `json:"roomCode"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	room, err := h.rooms.JoinRoom(r.Context(), userID, req.RoomCode)
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventRoomJoin, UserID: userID, RoomID: room.ID})

	writeJSON(w, http.StatusOK, map[string]any{
		"roomId":       room.ID,
		"roomCode":     room.RoomCode,
		"participants": room.Participants,
		"message":      "Joined room successfully",
	})
}

func (h *RoomHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.rooms.ListMyRooms(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rooms": rooms,
		"total": len(rooms),
	})
}

func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.rooms.GetRoom(r.Context(), chi.URLParam(r, "roomId"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (h *RoomHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status      string  `json:"status"`
		CurrentQuiz *string `json:"currentQuiz"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	room, err := h.rooms.UpdateRoomStatus(r.Context(), chi.URLParam(r, "roomId"), req.Status, req.CurrentQuiz)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, room)
}

func (h *RoomHandler) SubmitAnswers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QuizID  string              `json:"quizId"`
		Answers []model.AnswerInput `json:"answers"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	room, err := h.rooms.SubmitQuizAnswers(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "roomId"),
		req.QuizID,
		req.Answers,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Answers submitted successfully",
		"room":    room,
	})
}

func (h *RoomHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	roomID := chi.URLParam(r, "roomId")

	deleted, err := h.rooms.LeaveRoom(r.Context(), userID, roomID)
	if err != nil {
		writeError(w, err)
		return
	}

	if deleted {
		audit.LogFromRequest(r, audit.Event{Type: audit.EventRoomDelete, UserID: userID, RoomID: roomID})
		writeJSON(w, http.StatusOK, map[string]any{"message": "Left room; room deleted"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "Left room successfully"})
}
