package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// RoomCapacity is the number of participants a room holds.
const RoomCapacity = 2

type Room struct {
	ID           string       `db:"id" json:"id"`
	RoomCode     string       `db:"room_code" json:"roomCode"`
	CreatedBy    string       `db:"created_by" json:"createdBy"`
	Participants Participants `db:"participants" json:"participants"`
	SelectedQuiz *string      `db:"selected_quiz" json:"selectedQuiz"`
	QuizAnswers  AnswerSets   `db:"quiz_answers" json:"quizAnswers"`
	Status       RoomStatus   `db:"status" json:"status"`
	ExpiresAt    time.Time    `db:"expires_at" json:"expiresAt"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updatedAt"`
}

func (r *Room) HasParticipant(userID string) bool {
	return r.Participants.Contains(userID)
}

func (r *Room) IsFull() bool {
	return len(r.Participants) >= RoomCapacity
}

func (r *Room) AnswerSetFor(userID string) *AnswerSet {
	for i := range r.QuizAnswers {
		if r.QuizAnswers[i].UserID == userID {
			return &r.QuizAnswers[i]
		}
	}
	return nil
}

type Participant struct {
	UserID   string            `json:"userId"`
	Name     string            `json:"name"`
	Status   ParticipantStatus `json:"status"`
	JoinedAt time.Time         `json:"joinedAt"`
}

// Participants is stored as a JSONB array in join order.
type Participants []Participant

func (p Participants) Contains(userID string) bool {
	for _, participant := range p {
		if participant.UserID == userID {
			return true
		}
	}
	return false
}

func (p Participants) Value() (driver.Value, error) {
	return marshalJSONB(p)
}

func (p *Participants) Scan(src any) error {
	return scanJSONB(src, p)
}

type Answer struct {
	QuestionID string          `json:"questionId"`
	Answer     json.RawMessage `json:"answer"`
	AnsweredAt time.Time       `json:"answeredAt"`
}

type AnswerSet struct {
	UserID      string    `json:"userId"`
	QuizID      string    `json:"quizId"`
	Answers     []Answer  `json:"answers"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// AnswerSets holds at most one entry per user.
type AnswerSets []AnswerSet

func (a AnswerSets) Value() (driver.Value, error) {
	return marshalJSONB(a)
}

func (a *AnswerSets) Scan(src any) error {
	return scanJSONB(src, a)
}

type CreateRoomParams struct {
	RoomCode    string
	CreatedBy   string
	Participant Participant
	ExpiresAt   time.Time
}

type AnswerInput struct {
	QuestionID string          `json:"questionId"`
	Answer     json.RawMessage `json:"answer"`
}

// marshalJSONB encodes nil slices as [] so the column never holds null.
// The value is a string because lib/pq sends []byte parameters as bytea.
func marshalJSONB[T any](v []T) (driver.Value, error) {
	if v == nil {
		return "[]", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func scanJSONB(src any, dest any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
	return json.Unmarshal(data, dest)
}
