package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/duoquiz/duo-server/internal/errors"
	"github.com/duoquiz/duo-server/internal/model"
	"github.com/duoquiz/duo-server/internal/repository"
	"github.com/duoquiz/duo-server/internal/sse"
	"github.com/duoquiz/duo-server/internal/util"
)

const (
	maxRoomCodeAttempts = 5
	DefaultRoomTTL      = 24 * time.Hour
)

// EventPublisher delivers room events to live subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, roomID string, event sse.Event) error
}

type RoomServiceOptions struct {
	RoomTTL time.Duration
	// EnforceTransitions rejects status changes outside the transition table.
	EnforceTransitions bool
}

type UserSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RoomView is a room with creator and participant names resolved from the
// users table.
type RoomView struct {
	model.Room
	Creator UserSummary `json:"creator"`
}

type RoomService struct {
	rooms   repository.RoomRepository
	users   repository.UserRepository
	events  EventPublisher
	opts    RoomServiceOptions
	now     func() time.Time
	newCode func() (string, error)
}

func NewRoomService(
	rooms repository.RoomRepository,
	users repository.UserRepository,
	events EventPublisher,
	opts RoomServiceOptions,
) *RoomService {
	if opts.RoomTTL <= 0 {
		opts.RoomTTL = DefaultRoomTTL
	}
	return &RoomService{
		rooms:   rooms,
		users:   users,
		events:  events,
		opts:    opts,
		now:     time.Now,
		newCode: util.GenerateRoomCode,
	}
}

func (s *RoomService) CreateRoom(ctx context.Context, userID string) (*model.Room, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return nil, apperrors.NotFound("User")
	}

	now := s.now()
	participant := model.Participant{
		UserID:   user.ID,
		Name:     user.Name,
		Status:   model.ParticipantStatusJoined,
		JoinedAt: now,
	}

	for attempt := 1; attempt <= maxRoomCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, apperrors.Internal("Failed to generate room code").WithCause(err)
		}

		room, err := s.rooms.Create(ctx, model.CreateRoomParams{
			RoomCode:    code,
			CreatedBy:   user.ID,
			Participant: participant,
			ExpiresAt:   now.Add(s.opts.RoomTTL),
		})
		if errors.Is(err, repository.ErrDuplicateRoomCode) {
			log.Debug().Int("attempt", attempt).Msg("room code collision, regenerating")
			continue
		}
		if err != nil {
			return nil, apperrors.Database(fmt.Errorf("create room: %w", err))
		}

		log.Info().
			Str("roomId", room.ID).
			Str("roomCode", room.RoomCode).
			Str("userId", user.ID).
			Msg("room created")
		return room, nil
	}

	return nil, apperrors.Conflict("Could not allocate a unique room code, please retry")
}

func (s *RoomService) JoinRoom(ctx context.Context, userID, roomCode string) (*model.Room, error) {
	code := util.NormalizeRoomCode(roomCode)
	if code == "" {
		return nil, apperrors.MissingRequired("roomCode")
	}

	room, err := s.rooms.FindByCode(ctx, code)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("find room by code: %w", err))
	}
	if room == nil {
		return nil, apperrors.NotFound("Room")
	}
	if room.HasParticipant(userID) {
		return nil, apperrors.AlreadyJoined()
	}
	if room.IsFull() {
		return nil, apperrors.RoomFull()
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return nil, apperrors.NotFound("User")
	}

	updated, err := s.rooms.AppendParticipant(ctx, room.ID, model.Participant{
		UserID:   user.ID,
		Name:     user.Name,
		Status:   model.ParticipantStatusJoined,
		JoinedAt: s.now(),
	}, model.RoomCapacity)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("append participant: %w", err))
	}
	if updated == nil {
		return nil, s.classifyJoinFailure(ctx, room.ID, userID)
	}

	log.Info().
		Str("roomId", updated.ID).
		Str("userId", userID).
		Int("participants", len(updated.Participants)).
		Msg("room joined")

	s.publishRoomUpdated(ctx, updated)
	return updated, nil
}

// classifyJoinFailure re-reads the room after a conditional append matched
// no row, which means another request changed it in between.
func (s *RoomService) classifyJoinFailure(ctx context.Context, roomID, userID string) error {
	current, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		return apperrors.Database(fmt.Errorf("reload room: %w", err))
	}
	switch {
	case current == nil:
		return apperrors.NotFound("Room")
	case current.HasParticipant(userID):
		return apperrors.AlreadyJoined()
	case current.IsFull():
		return apperrors.RoomFull()
	default:
		return apperrors.Conflict("Room changed while joining, please retry")
	}
}

func (s *RoomService) GetRoom(ctx context.Context, roomID string) (*RoomView, error) {
	room, err := s.findRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(room.Participants)+1)
	ids = append(ids, room.CreatedBy)
	for _, p := range room.Participants {
		ids = append(ids, p.UserID)
	}

	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("find room users: %w", err))
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}

	view := &RoomView{Room: *room, Creator: UserSummary{ID: room.CreatedBy, Name: names[room.CreatedBy]}}
	view.Participants = make(model.Participants, len(room.Participants))
	for i, p := range room.Participants {
		if name, ok := names[p.UserID]; ok {
			p.Name = name
		}
		view.Participants[i] = p
	}
	return view, nil
}

func (s *RoomService) UpdateRoomStatus(ctx context.Context, roomID, status string, currentQuiz *string) (*model.Room, error) {
	if !util.IsValidUUID(roomID) {
		return nil, apperrors.NotFound("Room")
	}
	next, ok := model.ParseRoomStatus(status)
	if !ok {
		return nil, apperrors.InvalidInput("status", "must be one of waiting, active, completed, expired")
	}

	params := repository.UpdateRoomStatusParams{Status: next, SelectedQuiz: currentQuiz}

	if s.opts.EnforceTransitions {
		room, err := s.findRoom(ctx, roomID)
		if err != nil {
			return nil, err
		}
		if !room.Status.CanTransition(next) {
			return nil, apperrors.InvalidTransition(string(room.Status), string(next))
		}
		params.ExpectedStatus = &room.Status
	}

	updated, err := s.rooms.UpdateStatus(ctx, roomID, params)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("update room status: %w", err))
	}
	if updated == nil {
		if s.opts.EnforceTransitions {
			if _, err := s.findRoom(ctx, roomID); err != nil {
				return nil, err
			}
			return nil, apperrors.Conflict("Room status changed concurrently, please retry")
		}
		return nil, apperrors.NotFound("Room")
	}

	log.Info().
		Str("roomId", updated.ID).
		Str("status", string(updated.Status)).
		Msg("room status updated")

	s.publishRoomUpdated(ctx, updated)
	return updated, nil
}

func (s *RoomService) SubmitQuizAnswers(ctx context.Context, userID, roomID, quizID string, answers []model.AnswerInput) (*model.Room, error) {
	if !util.IsValidUUID(roomID) {
		return nil, apperrors.NotFound("Room")
	}
	if quizID == "" {
		return nil, apperrors.MissingRequired("quizId")
	}

	now := s.now()
	set := model.AnswerSet{
		UserID:      userID,
		QuizID:      quizID,
		Answers:     make([]model.Answer, len(answers)),
		SubmittedAt: now,
	}
	for i, a := range answers {
		if a.QuestionID == "" {
			return nil, apperrors.InvalidInput("answers", fmt.Sprintf("answer %d is missing questionId", i))
		}
		set.Answers[i] = model.Answer{QuestionID: a.QuestionID, Answer: a.Answer, AnsweredAt: now}
	}

	updated, err := s.rooms.UpsertAnswerSet(ctx, roomID, set)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("upsert answers: %w", err))
	}
	if updated == nil {
		if _, err := s.findRoom(ctx, roomID); err != nil {
			return nil, err
		}
		return nil, apperrors.Forbidden("You are not a participant in this room")
	}

	log.Info().
		Str("roomId", updated.ID).
		Str("userId", userID).
		Str("quizId", quizID).
		Int("answers", len(set.Answers)).
		Msg("quiz answers submitted")

	s.publishRoomUpdated(ctx, updated)
	return updated, nil
}

// LeaveRoom removes the caller and deletes the room once nobody is left.
// It reports whether the room was deleted.
func (s *RoomService) LeaveRoom(ctx context.Context, userID, roomID string) (bool, error) {
	if !util.IsValidUUID(roomID) {
		return false, apperrors.NotFound("Room")
	}

	updated, err := s.rooms.RemoveParticipant(ctx, roomID, userID)
	if err != nil {
		return false, apperrors.Database(fmt.Errorf("remove participant: %w", err))
	}
	if updated == nil {
		return false, apperrors.NotFound("Room")
	}

	if len(updated.Participants) > 0 {
		log.Info().Str("roomId", roomID).Str("userId", userID).Msg("room left")
		s.publishRoomUpdated(ctx, updated)
		return false, nil
	}

	deleted, err := s.rooms.DeleteIfEmpty(ctx, roomID)
	if err != nil {
		return false, apperrors.Database(fmt.Errorf("delete empty room: %w", err))
	}
	if deleted {
		log.Info().Str("roomId", roomID).Str("userId", userID).Msg("room deleted after last participant left")
		s.publish(ctx, roomID, sse.EventRoomDeleted, map[string]string{"roomId": roomID})
	}
	return deleted, nil
}

func (s *RoomService) ListMyRooms(ctx context.Context, userID string) ([]model.Room, error) {
	rooms, err := s.rooms.FindActiveByParticipant(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("list rooms: %w", err))
	}
	if rooms == nil {
		rooms = []model.Room{}
	}
	return rooms, nil
}

func (s *RoomService) findRoom(ctx context.Context, roomID string) (*model.Room, error) {
	if !util.IsValidUUID(roomID) {
		return nil, apperrors.NotFound("Room")
	}
	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("find room: %w", err))
	}
	if room == nil {
		return nil, apperrors.NotFound("Room")
	}
	return room, nil
}

func (s *RoomService) publishRoomUpdated(ctx context.Context, room *model.Room) {
	s.publish(ctx, room.ID, sse.EventRoomUpdated, room)
}

// publish is best effort: the mutation is already committed.
func (s *RoomService) publish(ctx context.Context, roomID, eventType string, data any) {
	if s.events == nil {
		return
	}
	event, err := sse.NewEvent(eventType, data)
	if err == nil {
		err = s.events.Publish(ctx, roomID, event)
	}
	if err != nil {
		log.Warn().Err(err).Str("roomId", roomID).Str("event", eventType).Msg("failed to publish room event")
	}
}
