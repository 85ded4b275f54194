package util

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var roomCodeRegex = regexp.MustCompile(`^[A-F0-9]{6}$`)

func IsValidUUID(s string) bool {
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// NormalizeRoomCode trims and upper-cases a user supplied code so lookups
// are case-insensitive.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func IsValidRoomCode(code string) bool {
	return roomCodeRegex.MatchString(code)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func IsValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
