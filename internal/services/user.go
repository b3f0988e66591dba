package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tiketi/apiserver/internal/apperr"
	"github.com/tiketi/apiserver/internal/metrics"
	"github.com/tiketi/apiserver/internal/mq"
	"github.com/tiketi/apiserver/internal/store"
	"github.com/tiketi/apiserver/internal/validate"
	"github.com/tiketi/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByPhone(ctx context.Context, phone string) (types.User, error)
	List(ctx context.Context, offset, limit int) ([]types.User, int, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdateRole(ctx context.Context, id int, role string) error
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, candidate string) bool
	VerifyMissing(candidate string)
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(userID int, role string) (string, error)
}

// EventPublisher publishes domain events. A nil publisher disables
// publication.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Session is the result of a successful signup or login.
type Session struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

// SignupInput carries raw signup fields. Blank values count as missing.
type SignupInput struct {
	Name     string
	Phone    string
	Email    string
	Password string
}

// UserRegistered is the payload of the user.registered event.
type UserRegistered struct {
	UserID int    `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

var signupSchema = validate.Schema{
	{Name: "name", Required: true},
	{Name: "phone", Required: true},
	{Name: "email", Required: true},
	{Name: "password", Required: true},
}

var loginSchema = validate.Schema{
	{Name: "email", Required: true},
	{Name: "password", Required: true},
}

// UserService encapsulates account use-cases.
type UserService struct {
	repo   UserRepository
	hasher PasswordHasher
	tokens TokenIssuer
	events EventPublisher
	logger *slog.Logger
}

func NewUserService(repo UserRepository, hasher PasswordHasher, tokens TokenIssuer, events EventPublisher) *UserService {
	return &UserService{
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
		events: events,
		logger: slog.Default().With("service", "user"),
	}
}

// Signup validates the input, rejects taken emails and phones, stores the
// user with the default role and returns a session for it. Steps run in a
// fixed order and the password is only hashed once every check has passed.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (session Session, err error) {
	defer func() { countSignup(err) }()

	if err := signupSchema.Check(map[string]any{
		"name":     in.Name,
		"phone":    in.Phone,
		"email":    in.Email,
		"password": in.Password,
	}); err != nil {
		return Session{}, err
	}

	email, err := validate.Email(in.Email)
	if err != nil {
		return Session{}, err
	}
	phone, err := validate.Phone(in.Phone)
	if err != nil {
		return Session{}, err
	}
	if err := validate.Password(in.Password); err != nil {
		return Session{}, err
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return Session{}, apperr.DuplicateEmail()
	} else if !errors.Is(err, store.ErrNotFound) {
		return Session{}, fmt.Errorf("check email: %w", err)
	}
	if _, err := s.repo.GetByPhone(ctx, phone); err == nil {
		return Session{}, apperr.DuplicatePhone()
	} else if !errors.Is(err, store.ErrNotFound) {
		return Session{}, fmt.Errorf("check phone: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Session{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		Name:         in.Name,
		Phone:        phone,
		Email:        email,
		Role:         types.RoleUser,
		PasswordHash: hash,
	})
	if err != nil {
		return Session{}, translateUserConflict(err)
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}

	s.publish(ctx, mq.TopicUserRegistered, UserRegistered{UserID: user.ID, Name: user.Name, Role: user.Role})
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)

	return Session{Token: token, User: user}, nil
}

// translateUserConflict maps a storage conflict that slipped past the
// pre-checks to the error the pre-check would have returned.
func translateUserConflict(err error) error {
	switch {
	case store.IsConstraint(err, store.UniqueViolation, store.ConstraintUsersEmail):
		return apperr.DuplicateEmail()
	case store.IsConstraint(err, store.UniqueViolation, store.ConstraintUsersPhone):
		return apperr.DuplicatePhone()
	}
	if _, ok := store.AsConstraint(err); ok {
		return apperr.IntegrityViolation(err)
	}
	return fmt.Errorf("create user: %w", err)
}

// Login verifies credentials and issues a token. Unknown emails and wrong
// passwords return the same error and cost the same bcrypt comparison.
func (s *UserService) Login(ctx context.Context, email, password string) (session Session, err error) {
	defer func() { countLogin(err) }()

	if err := loginSchema.Check(map[string]any{"email": email, "password": password}); err != nil {
		return Session{}, err
	}

	normalized, err := validate.Email(email)
	if err != nil {
		s.hasher.VerifyMissing(password)
		return Session{}, apperr.InvalidCredentials()
	}

	user, err := s.repo.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.hasher.VerifyMissing(password)
			return Session{}, apperr.InvalidCredentials()
		}
		return Session{}, fmt.Errorf("load user: %w", err)
	}

	if user.PasswordHash == "" {
		s.hasher.VerifyMissing(password)
		return Session{}, apperr.InvalidCredentials()
	}
	if !s.hasher.Verify(user.PasswordHash, password) {
		return Session{}, apperr.InvalidCredentials()
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{Token: token, User: user}, nil
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, apperr.NotFound("user")
	}
	return user, err
}

// List returns a page of user summaries and the total user count.
func (s *UserService) List(ctx context.Context, offset, limit int) ([]types.UserSummary, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	users, total, err := s.repo.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	summaries := make([]types.UserSummary, len(users))
	for i, u := range users {
		summaries[i] = u.Summary()
	}
	return summaries, total, nil
}

// Promote grants the admin role to the user with the given email.
func (s *UserService) Promote(ctx context.Context, email string) (types.User, error) {
	normalized, err := validate.Email(email)
	if err != nil {
		return types.User{}, err
	}
	user, err := s.repo.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, apperr.NotFound("user")
		}
		return types.User{}, err
	}
	if user.Role == types.RoleAdmin {
		return user, nil
	}
	if err := s.repo.UpdateRole(ctx, user.ID, types.RoleAdmin); err != nil {
		return types.User{}, err
	}
	user.Role = types.RoleAdmin
	return user, nil
}

func (s *UserService) publish(ctx context.Context, topic string, payload any) {
	publish(ctx, s.events, s.logger, topic, payload)
}

// publish sends a domain event. Failures are logged and never fail the
// calling operation.
func publish(ctx context.Context, events EventPublisher, logger *slog.Logger, topic string, payload any) {
	if events == nil {
		return
	}
	if err := events.Publish(ctx, topic, payload); err != nil {
		logger.WarnContext(ctx, "publish event failed", "topic", topic, "error", err)
	}
}

func countSignup(err error) {
	result, kind := resultOf(err)
	metrics.Signups.WithLabelValues(result, kind).Inc()
}

func countLogin(err error) {
	result, _ := resultOf(err)
	metrics.Logins.WithLabelValues(result).Inc()
}

func resultOf(err error) (result, kind string) {
	if err == nil {
		return metrics.ResultOK, ""
	}
	if k := apperr.KindOf(err); k != "" {
		return metrics.ResultRejected, string(k)
	}
	return metrics.ResultError, ""
}
