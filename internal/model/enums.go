package model

type RoomStatus string

const (
	RoomStatusWaiting   RoomStatus = "waiting"
	RoomStatusActive    RoomStatus = "active"
	RoomStatusCompleted RoomStatus = "completed"
	RoomStatusExpired   RoomStatus = "expired"
)

var roomStatuses = []RoomStatus{
	RoomStatusWaiting,
	RoomStatusActive,
	RoomStatusCompleted,
	RoomStatusExpired,
}

// roomTransitions lists the statuses a client may move a room to.
// expired is reserved for the expiry sweep.
var roomTransitions = map[RoomStatus][]RoomStatus{
	RoomStatusWaiting: {RoomStatusActive, RoomStatusCompleted},
	RoomStatusActive:  {RoomStatusCompleted},
}

func ParseRoomStatus(s string) (RoomStatus, bool) {
	for _, st := range roomStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// CanTransition reports whether from -> to is allowed by the transition table.
// Staying in the same non-expired status is always allowed.
func (s RoomStatus) CanTransition(to RoomStatus) bool {
	if s == to {
		return s != RoomStatusExpired
	}
	for _, next := range roomTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type ParticipantStatus string

const (
	ParticipantStatusJoined ParticipantStatus = "joined"
)
