// Package users handles account lifecycle: registration, authentication,
// profile and password management, and the bootstrap admin account.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sethvargo/go-password/password"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"showtracker/internal/database"
	"showtracker/models"
)

var (
	ErrUsernameTaken      = errors.New("username already in use")
	ErrEmailTaken         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("user not found")
	ErrWrongPassword      = errors.New("current password does not match")
	ErrValidation         = errors.New("validation failed")
)

const (
	minPasswordLength = 8

	bootstrapUsername       = "admin"
	bootstrapEmail          = "admin@localhost"
	bootstrapPasswordLength = 16
)

// Service wraps the user repository with hashing and uniqueness rules.
type Service struct {
	repo *database.UserRepository
	log  *logrus.Logger
}

// NewService wires the user service.
func NewService(repo *database.UserRepository, log *logrus.Logger) *Service {
	return &Service{repo: repo, log: log}
}

func validateRegistration(username, email, pass string) error {
	if strings.TrimSpace(username) == "" {
		return fmt.Errorf("%w: username is required", ErrValidation)
	}
	if !strings.Contains(email, "@") {
		return fmt.Errorf("%w: email address is not valid", ErrValidation)
	}
	if len(pass) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	return nil
}

// Register creates a new account. Username and email must be unique.
func (s *Service) Register(ctx context.Context, username, email, pass, preferredName string) (*models.User, error) {
	if err := validateRegistration(username, email, pass); err != nil {
		return nil, err
	}

	if taken, err := s.repo.UsernameExists(ctx, username); err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	} else if taken {
		return nil, ErrUsernameTaken
	}
	if taken, err := s.repo.EmailExists(ctx, email); err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	} else if taken {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	if preferredName == "" {
		preferredName = username
	}
	user := &models.User{
		Username:      username,
		Email:         email,
		PasswordHash:  string(hash),
		PreferredName: preferredName,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		// Racing registration can still hit the unique index.
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.WithField("username", username).Info("user registered")
	return user, nil
}

// Authenticate verifies a username-or-email plus password pair. All failure
// modes collapse into ErrInvalidCredentials so callers cannot probe which
// part was wrong.
func (s *Service) Authenticate(ctx context.Context, login, pass string) (*models.User, error) {
	user, err := s.repo.GetByUsername(ctx, login)
	if errors.Is(err, database.ErrNotFound) {
		user, err = s.repo.GetByEmail(ctx, login)
	}
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("look up user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(pass)) != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Get returns one account by id.
func (s *Service) Get(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	return user, err
}

// UpdateProfile changes email and preferred name. A changed email must
// still be unique.
func (s *Service) UpdateProfile(ctx context.Context, id int64, email, preferredName string) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if email != "" && email != user.Email {
		if !strings.Contains(email, "@") {
			return nil, fmt.Errorf("%w: email address is not valid", ErrValidation)
		}
		if taken, err := s.repo.EmailExists(ctx, email); err != nil {
			return nil, fmt.Errorf("check email: %w", err)
		} else if taken {
			return nil, ErrEmailTaken
		}
		user.Email = email
	}
	if preferredName != "" {
		user.PreferredName = preferredName
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// ChangePassword verifies the current password before storing a new hash.
func (s *Service) ChangePassword(ctx context.Context, id int64, current, next string) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		return ErrWrongPassword
	}
	if len(next) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	if err := s.repo.Update(ctx, user); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.log.WithField("userId", id).Info("password changed")
	return nil
}

// Delete removes the account. Watch data goes with it via foreign keys.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	s.log.WithField("userId", id).Info("user deleted")
	return nil
}

// EnsureAdmin creates the bootstrap admin account when the user table is
// empty. The generated password is logged exactly once; it cannot be
// recovered later.
func (s *Service) EnsureAdmin(ctx context.Context) error {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}

	pass, err := password.Generate(bootstrapPasswordLength, 4, 2, false, false)
	if err != nil {
		return fmt.Errorf("generate admin password: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := &models.User{
		Username:      bootstrapUsername,
		Email:         bootstrapEmail,
		PasswordHash:  string(hash),
		PreferredName: "Administrator",
		IsAdmin:       true,
	}
	if err := s.repo.Create(ctx, admin); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"username": bootstrapUsername,
		"password": pass,
	}).Warn("created bootstrap admin account, change this password")
	return nil
}
