package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	apperrors "github.com/duoquiz/duo-server/internal/errors"
	"github.com/duoquiz/duo-server/internal/model"
	"github.com/duoquiz/duo-server/internal/repository"
	"github.com/duoquiz/duo-server/internal/util"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 72 // bcrypt ignores bytes past 72
	maxNameLength     = 100
	maxBioLength      = 500
)

// dummyHash keeps login timing similar whether or not the email exists.
const dummyHash = "$2a$12$C6UzMDM.H6dfI/f/IKcEeO5E8YAq/2yQ2B1rWPvaW8X9R9pKXo9CK"

type TokenIssuer interface {
	Issue(userID string) (string, error)
}

type AuthResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type AccountService struct {
	users  repository.UserRepository
	tokens TokenIssuer
	hash   func(password string) (string, error)
}

func NewAccountService(users repository.UserRepository, tokens TokenIssuer) *AccountService {
	return &AccountService{
		users:  users,
		tokens: tokens,
		hash:   util.HashPassword,
	}
}

func (s *AccountService) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	email = util.NormalizeEmail(email)
	name = strings.TrimSpace(name)

	switch {
	case email == "":
		return nil, apperrors.MissingRequired("email")
	case !util.IsValidEmail(email):
		return nil, apperrors.InvalidInput("email", "not a valid address")
	case password == "":
		return nil, apperrors.MissingRequired("password")
	case len(password) < minPasswordLength:
		return nil, apperrors.InvalidInput("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	case len(password) > maxPasswordLength:
		return nil, apperrors.InvalidInput("password", fmt.Sprintf("must be at most %d bytes", maxPasswordLength))
	case name == "":
		return nil, apperrors.MissingRequired("name")
	case utf8.RuneCountInString(name) > maxNameLength:
		return nil, apperrors.InvalidInput("name", fmt.Sprintf("must be at most %d characters", maxNameLength))
	}

	hash, err := s.hash(password)
	if err != nil {
		return nil, apperrors.Internal("Failed to hash password").WithCause(err)
	}

	user, err := s.users.Create(ctx, model.CreateUserParams{Email: email, PasswordHash: hash, Name: name})
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return nil, apperrors.AlreadyExists("Account with this email")
	}
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("create user: %w", err))
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, apperrors.Internal("Failed to issue token").WithCause(err)
	}

	log.Info().Str("userId", user.ID).Msg("user registered")
	return &AuthResult{Token: token, User: user}, nil
}

func (s *AccountService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = util.NormalizeEmail(email)
	if email == "" {
		return nil, apperrors.MissingRequired("email")
	}
	if password == "" {
		return nil, apperrors.MissingRequired("password")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("find user by email: %w", err))
	}
	if user == nil {
		util.CheckPasswordHash(password, dummyHash)
		return nil, apperrors.InvalidCredentials()
	}
	if !util.CheckPasswordHash(password, user.PasswordHash) {
		return nil, apperrors.InvalidCredentials()
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		log.Warn().Err(err).Str("userId", user.ID).Msg("failed to record last login")
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, apperrors.Internal("Failed to issue token").WithCause(err)
	}

	return &AuthResult{Token: token, User: user}, nil
}

func (s *AccountService) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return nil, apperrors.NotFound("User")
	}
	return user, nil
}

func (s *AccountService) UpdateProfile(ctx context.Context, userID string, name, bio *string) (*model.User, error) {
	params := model.UpdateUserParams{}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, apperrors.InvalidInput("name", "must not be empty")
		}
		if utf8.RuneCountInString(trimmed) > maxNameLength {
			return nil, apperrors.InvalidInput("name", fmt.Sprintf("must be at most %d characters", maxNameLength))
		}
		params.Name = &trimmed
	}
	if bio != nil {
		if utf8.RuneCountInString(*bio) > maxBioLength {
			return nil, apperrors.InvalidInput("bio", fmt.Sprintf("must be at most %d characters", maxBioLength))
		}
		params.Bio = bio
	}

	user, err := s.users.Update(ctx, userID, params)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("update user: %w", err))
	}
	if user == nil {
		return nil, apperrors.NotFound("User")
	}
	return user, nil
}
