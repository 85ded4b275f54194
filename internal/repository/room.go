package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/duoquiz/duo-server/internal/database"
	"github.com/duoquiz/duo-server/internal/model"
)

// ErrDuplicateRoomCode is returned by Create when the generated code is taken.
var ErrDuplicateRoomCode = errors.New("room code already in use")

const roomCodeConstraint = "rooms_room_code_key"

type UpdateRoomStatusParams struct {
	Status       model.RoomStatus
	SelectedQuiz *string
	// ExpectedStatus, when set, makes the update conditional on the current status.
	ExpectedStatus *model.RoomStatus
}

type RoomRepository interface {
	FindByID(ctx context.Context, id string) (*model.Room, error)
	FindByCode(ctx context.Context, code string) (*model.Room, error)
	FindActiveByParticipant(ctx context.Context, userID string) ([]model.Room, error)
	Create(ctx context.Context, params model.CreateRoomParams) (*model.Room, error)
	// AppendParticipant adds p only while the room has fewer than capacity
	// participants and p is not already one of them. It returns nil when the
	// condition did not hold or the room does not exist.
	AppendParticipant(ctx context.Context, roomID string, p model.Participant, capacity int) (*model.Room, error)
	RemoveParticipant(ctx context.Context, roomID, userID string) (*model.Room, error)
	DeleteIfEmpty(ctx context.Context, roomID string) (bool, error)
	// UpsertAnswerSet replaces the caller's answer set in place, or appends it.
	// It returns nil when the room does not exist or the user is not a participant.
	UpsertAnswerSet(ctx context.Context, roomID string, set model.AnswerSet) (*model.Room, error)
	UpdateStatus(ctx context.Context, roomID string, params UpdateRoomStatusParams) (*model.Room, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type roomRepo struct {
	db *sqlx.DB
}

func NewRoomRepository(db *sqlx.DB) RoomRepository {
	return &roomRepo{db: db}
}

func (r *roomRepo) FindByID(ctx context.Context, id string) (*model.Room, error) {
	var room model.Room
	err := r.db.GetContext(ctx, &room, `SELECT * FROM rooms WHERE id = $1`, id)
	return HandleNotFound(&room, err)
}

func (r *roomRepo) FindByCode(ctx context.Context, code string) (*model.Room, error) {
	var room model.Room
	err := r.db.GetContext(ctx, &room, `SELECT * FROM rooms WHERE room_code = $1`, code)
	return HandleNotFound(&room, err)
}

func (r *roomRepo) FindActiveByParticipant(ctx context.Context, userID string) ([]model.Room, error) {
	var rooms []model.Room
	err := r.db.SelectContext(ctx, &rooms, `
		SELECT * FROM rooms
		WHERE participants @> jsonb_build_array(jsonb_build_object('userId', $1::text))
		AND expires_at > NOW()
		ORDER BY created_at DESC
	`, userID)
	return rooms, err
}

func (r *roomRepo) Create(ctx context.Context, params model.CreateRoomParams) (*model.Room, error) {
	participants := model.Participants{params.Participant}

	var room model.Room
	err := r.db.GetContext(ctx, &room, `
		INSERT INTO rooms (room_code, created_by, participants, status, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, params.RoomCode, params.CreatedBy, participants, model.RoomStatusWaiting, params.ExpiresAt)
	if database.IsUniqueViolation(err, roomCodeConstraint) {
		return nil, ErrDuplicateRoomCode
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *roomRepo) AppendParticipant(ctx context.Context, roomID string, p model.Participant, capacity int) (*model.Room, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal participant: %w", err)
	}

	var room model.Room
	err = r.db.GetContext(ctx, &room, `
		UPDATE rooms SET
			participants = participants || jsonb_build_array($2::jsonb),
			status = CASE
				WHEN status = 'waiting' AND jsonb_array_length(participants) + 1 >= $3 THEN 'active'
				ELSE status
			END,
			updated_at = NOW()
		WHERE id = $1
		AND jsonb_array_length(participants) < $3
		AND NOT participants @> jsonb_build_array(jsonb_build_object('userId', $4::text))
		RETURNING *
	`, roomID, string(data), capacity, p.UserID)
	return HandleNotFound(&room, err)
}

func (r *roomRepo) RemoveParticipant(ctx context.Context, roomID, userID string) (*model.Room, error) {
	var room model.Room
	err := r.db.GetContext(ctx, &room, `
		UPDATE rooms SET
			participants = COALESCE((
				SELECT jsonb_agg(p ORDER BY ord)
				FROM jsonb_array_elements(participants) WITH ORDINALITY AS t(p, ord)
				WHERE p->>'userId' <> $2::text
			), '[]'::jsonb),
			status = CASE
				WHEN status = 'active'
					AND participants @> jsonb_build_array(jsonb_build_object('userId', $2::text))
				THEN 'waiting'
				ELSE status
			END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`, roomID, userID)
	return HandleNotFound(&room, err)
}

func (r *roomRepo) DeleteIfEmpty(ctx context.Context, roomID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM rooms
		WHERE id = $1 AND jsonb_array_length(participants) = 0
	`, roomID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *roomRepo) UpsertAnswerSet(ctx context.Context, roomID string, set model.AnswerSet) (*model.Room, error) {
	data, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("marshal answer set: %w", err)
	}

	var room model.Room
	err = r.db.GetContext(ctx, &room, `
		UPDATE rooms SET
			quiz_answers = CASE
				WHEN quiz_answers @> jsonb_build_array(jsonb_build_object('userId', $2::text)) THEN (
					SELECT jsonb_agg(
						CASE WHEN a->>'userId' = $2::text THEN $3::jsonb ELSE a END
						ORDER BY ord
					)
					FROM jsonb_array_elements(quiz_answers) WITH ORDINALITY AS t(a, ord)
				)
				ELSE quiz_answers || jsonb_build_array($3::jsonb)
			END,
			updated_at = NOW()
		WHERE id = $1
		AND participants @> jsonb_build_array(jsonb_build_object('userId', $2::text))
		RETURNING *
	`, roomID, set.UserID, string(data))
	return HandleNotFound(&room, err)
}

func (r *roomRepo) UpdateStatus(ctx context.Context, roomID string, params UpdateRoomStatusParams) (*model.Room, error) {
	var expected *string
	if params.ExpectedStatus != nil {
		s := string(*params.ExpectedStatus)
		expected = &s
	}

	var room model.Room
	err := r.db.GetContext(ctx, &room, `
		UPDATE rooms SET
			status = $2,
			selected_quiz = COALESCE($3, selected_quiz),
			updated_at = NOW()
		WHERE id = $1
		AND ($4::text IS NULL OR status = $4::text)
		RETURNING *
	`, roomID, params.Status, params.SelectedQuiz, expected)
	return HandleNotFound(&room, err)
}

func (r *roomRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
