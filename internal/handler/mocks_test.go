package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/duoquiz/duo-server/internal/middleware"
	"github.com/duoquiz/duo-server/internal/model"
	"github.com/duoquiz/duo-server/internal/service"
)

type mockRoomService struct {
	createRoomFunc        func(ctx context.Context, userID string) (*model.Room, error)
	joinRoomFunc          func(ctx context.Context, userID, roomCode string) (*model.Room, error)
	getRoomFunc           func(ctx context.Context, roomID string) (*service.RoomView, error)
	updateRoomStatusFunc  func(ctx context.Context, roomID, status string, currentQuiz *string) (*model.Room, error)
	submitQuizAnswersFunc func(ctx context.Context, userID, roomID, quizID string, answers []model.AnswerInput) (*model.Room, error)
	leaveRoomFunc         func(ctx context.Context, userID, roomID string) (bool, error)
	listMyRoomsFunc       func(ctx context.Context, userID string) ([]model.Room, error)
}

func (m *mockRoomService) CreateRoom(ctx context.Context, userID string) (*model.Room, error) {
	return m.createRoomFunc(ctx, userID)
}

func (m *mockRoomService) JoinRoom(ctx context.Context, userID, roomCode string) (*model.Room, error) {
	return m.joinRoomFunc(ctx, userID, roomCode)
}

func (m *mockRoomService) GetRoom(ctx context.Context, roomID string) (*service.RoomView, error) {
	return m.getRoomFunc(ctx, roomID)
}

func (m *mockRoomService) UpdateRoomStatus(ctx context.Context, roomID, status string, currentQuiz *string) (*model.Room, error) {
	return m.updateRoomStatusFunc(ctx, roomID, status, currentQuiz)
}

func (m *mockRoomService) SubmitQuizAnswers(ctx context.Context, userID, roomID, quizID string, answers []model.AnswerInput) (*model.Room, error) {
	return m.submitQuizAnswersFunc(ctx, userID, roomID, quizID, answers)
}

func (m *mockRoomService) LeaveRoom(ctx context.Context, userID, roomID string) (bool, error) {
	return m.leaveRoomFunc(ctx, userID, roomID)
}

func (m *mockRoomService) ListMyRooms(ctx context.Context, userID string) ([]model.Room, error) {
	return m.listMyRoomsFunc(ctx, userID)
}

type mockAccountService struct {
	registerFunc      func(ctx context.Context, email, password, name string) (*service.AuthResult, error)
	loginFunc         func(ctx context.Context, email, password string) (*service.AuthResult, error)
	getProfileFunc    func(ctx context.Context, userID string) (*model.User, error)
	updateProfileFunc func(ctx context.Context, userID string, name, bio *string) (*model.User, error)
}

func (m *mockAccountService) Register(ctx context.Context, email, password, name string) (*service.AuthResult, error) {
	return m.registerFunc(ctx, email, password, name)
}

func (m *mockAccountService) Login(ctx context.Context, email, password string) (*service.AuthResult, error) {
	return m.loginFunc(ctx, email, password)
}

func (m *mockAccountService) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	return m.getProfileFunc(ctx, userID)
}

func (m *mockAccountService) UpdateProfile(ctx context.Context, userID string, name, bio *string) (*model.User, error) {
	return m.updateProfileFunc(ctx, userID, name, bio)
}

// fakeAuth stands in for the auth gate, trusting an X-Test-User header.
func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-Test-User")
		if userID == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(middleware.WithUserID(r.Context(), userID)))
	})
}

func serve(t *testing.T, router chi.Router, method, target, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if userID != "" {
		req.Header.Set("X-Test-User", userID)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "body: %s", rec.Body.String())
	return body
}
