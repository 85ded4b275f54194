package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/duoquiz/duo-server/internal/model"
	"github.com/duoquiz/duo-server/internal/repository"
	"github.com/duoquiz/duo-server/internal/sse"
)

// memRoomRepo mirrors the conditional SQL updates of the Postgres
// repository, holding its lock for each whole statement.
type memRoomRepo struct {
	mu    sync.Mutex
	rooms map[string]*model.Room
	now   func() time.Time

	createFunc func(ctx context.Context, params model.CreateRoomParams) (*model.Room, error)
}

func newMemRoomRepo() *memRoomRepo {
	return &memRoomRepo{rooms: make(map[string]*model.Room), now: time.Now}
}

func cloneRoom(r *model.Room) *model.Room {
	c := *r
	c.Participants = append(model.Participants(nil), r.Participants...)
	c.QuizAnswers = append(model.AnswerSets(nil), r.QuizAnswers...)
	return &c
}

func (m *memRoomRepo) FindByID(ctx context.Context, id string) (*model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[id]; ok {
		return cloneRoom(r), nil
	}
	return nil, nil
}

func (m *memRoomRepo) FindByCode(ctx context.Context, code string) (*model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rooms {
		if r.RoomCode == code {
			return cloneRoom(r), nil
		}
	}
	return nil, nil
}

func (m *memRoomRepo) FindActiveByParticipant(ctx context.Context, userID string) ([]model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Room
	for _, r := range m.rooms {
		if r.HasParticipant(userID) && r.ExpiresAt.After(m.now()) {
			out = append(out, *cloneRoom(r))
		}
	}
	return out, nil
}

func (m *memRoomRepo) Create(ctx context.Context, params model.CreateRoomParams) (*model.Room, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, params)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rooms {
		if r.RoomCode == params.RoomCode {
			return nil, repository.ErrDuplicateRoomCode
		}
	}
	room := &model.Room{
		ID:           uuid.NewString(),
		RoomCode:     params.RoomCode,
		CreatedBy:    params.CreatedBy,
		Participants: model.Participants{params.Participant},
		QuizAnswers:  model.AnswerSets{},
		Status:       model.RoomStatusWaiting,
		ExpiresAt:    params.ExpiresAt,
		CreatedAt:    m.now(),
		UpdatedAt:    m.now(),
	}
	m.rooms[room.ID] = room
	return cloneRoom(room), nil
}

func (m *memRoomRepo) AppendParticipant(ctx context.Context, roomID string, p model.Participant, capacity int) (*model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	if !ok || len(r.Participants) >= capacity || r.HasParticipant(p.UserID) {
		return nil, nil
	}
	r.Participants = append(r.Participants, p)
	if r.Status == model.RoomStatusWaiting && len(r.Participants) >= capacity {
		r.Status = model.RoomStatusActive
	}
	return cloneRoom(r), nil
}

func (m *memRoomRepo) RemoveParticipant(ctx context.Context, roomID, userID string) (*model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	if !ok {
		return nil, nil
	}
	kept := model.Participants{}
	for _, p := range r.Participants {
		if p.UserID != userID {
			kept = append(kept, p)
		}
	}
	if r.Status == model.RoomStatusActive && len(kept) < len(r.Participants) {
		r.Status = model.RoomStatusWaiting
	}
	r.Participants = kept
	return cloneRoom(r), nil
}

func (m *memRoomRepo) DeleteIfEmpty(ctx context.Context, roomID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	if !ok || len(r.Participants) > 0 {
		return false, nil
	}
	delete(m.rooms, roomID)
	return true, nil
}

func (m *memRoomRepo) UpsertAnswerSet(ctx context.Context, roomID string, set model.AnswerSet) (*model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	if !ok || !r.HasParticipant(set.UserID) {
		return nil, nil
	}
	if existing := r.AnswerSetFor(set.UserID); existing != nil {
		*existing = set
	} else {
		r.QuizAnswers = append(r.QuizAnswers, set)
	}
	return cloneRoom(r), nil
}

func (m *memRoomRepo) UpdateStatus(ctx context.Context, roomID string, params repository.UpdateRoomStatusParams) (*model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	if !ok {
		return nil, nil
	}
	if params.ExpectedStatus != nil && r.Status != *params.ExpectedStatus {
		return nil, nil
	}
	r.Status = params.Status
	if params.SelectedQuiz != nil {
		q := *params.SelectedQuiz
		r.SelectedQuiz = &q
	}
	return cloneRoom(r), nil
}

func (m *memRoomRepo) DeleteExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, r := range m.rooms {
		if r.ExpiresAt.Before(m.now()) {
			delete(m.rooms, id)
			n++
		}
	}
	return n, nil
}

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User

	findByIDFunc func(ctx context.Context, id string) (*model.User, error)
	createFunc   func(ctx context.Context, params model.CreateUserParams) (*model.User, error)
}

func newMockUserRepo(users ...*model.User) *mockUserRepo {
	m := &mockUserRepo{users: make(map[string]*model.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, nil
}

func (m *mockUserRepo) FindByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, params)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == params.Email {
			return nil, repository.ErrDuplicateEmail
		}
	}
	u := &model.User{ID: uuid.NewString(), Email: params.Email, PasswordHash: params.PasswordHash, Name: params.Name}
	m.users[u.ID] = u
	c := *u
	return &c, nil
}

func (m *mockUserRepo) Update(ctx context.Context, id string, params model.UpdateUserParams) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	if params.Name != nil {
		u.Name = *params.Name
	}
	if params.Bio != nil {
		b := *params.Bio
		u.Bio = &b
	}
	c := *u
	return &c, nil
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		now := time.Now()
		u.LastLoginAt = &now
	}
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

type publishedEvent struct {
	RoomID string
	Event  sse.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, roomID string, event sse.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{RoomID: roomID, Event: event})
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Event.Type
	}
	return out
}
