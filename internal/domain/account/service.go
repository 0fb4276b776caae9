package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/itsaddyon/MediBridge/internal/platform/activity"
	"github.com/itsaddyon/MediBridge/internal/platform/apperr"
	"github.com/itsaddyon/MediBridge/internal/platform/auth"
	"github.com/itsaddyon/MediBridge/internal/platform/metrics"
)

const minPasswordLen = 6

// TokenIssuer mints bearer tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID uuid.UUID, roles []string) (string, time.Time, error)
	Verify(token string) (*auth.Claims, error)
}

type Service struct {
	users     UserRepository
	tokens    TokenIssuer
	logger    zerolog.Logger
	metrics   *metrics.Collector
	cost      int
	dummyHash []byte
}

// Option customises a Service.
type Option func(*Service)

// WithBcryptCost overrides the hashing cost; tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func NewService(users UserRepository, tokens TokenIssuer, logger zerolog.Logger, collector *metrics.Collector, opts ...Option) *Service {
	s := &Service{
		users:   users,
		tokens:  tokens,
		logger:  logger.With().Str("component", "account").Logger(),
		metrics: collector,
		cost:    bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	// Unknown emails are compared against this hash so both failure paths
	// cost one bcrypt comparison.
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("medibridge-dummy-password"), s.cost)
	return s
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCredentials(email, password string) error {
	var fields []string
	if email == "" {
		fields = append(fields, "email")
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return apperr.Invalidf("invalid email address")
	}
	if password == "" {
		fields = append(fields, "password")
	}
	if len(fields) > 0 {
		return apperr.Invalid(fields...)
	}
	if len(password) < minPasswordLen {
		return apperr.Invalidf("password must be at least %d characters", minPasswordLen)
	}
	return nil
}

// Register creates a clinic account and signs it in.
func (s *Service) Register(ctx context.Context, email, password, displayName string) (*Session, error) {
	email = normaliseEmail(email)
	if err := validateCredentials(email, password); err != nil {
		s.metrics.Auth("register", "invalid")
		return nil, err
	}

	u, err := s.create(ctx, email, password, displayName, auth.RoleClinic)
	if err != nil {
		if errors.Is(err, apperr.ErrDuplicateIdentity) {
			s.metrics.Auth("register", "duplicate")
		} else {
			s.metrics.Auth("register", "error")
		}
		return nil, err
	}

	s.metrics.Auth("register", "ok")
	s.logger.Info().Str("user_id", u.ID.String()).Msg("account registered")
	activity.Record(ctx, activity.Note{
		Kind:     activity.KindUser,
		Action:   "User Registered",
		Details:  fmt.Sprintf("New %s account %s", u.Role, u.Email),
		Severity: activity.SeveritySuccess,
		ActorID:  u.ID,
	})
	return s.session(u)
}

// Authenticate checks credentials. Unknown email and wrong password yield the
// same ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	email = normaliseEmail(email)
	if email == "" || password == "" {
		s.metrics.Auth("login", "invalid")
		return nil, apperr.Invalid("email", "password")
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		s.metrics.Auth("login", "error")
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash := s.dummyHash
	if u != nil {
		hash = []byte(u.PasswordHash)
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil || u == nil {
		s.metrics.Auth("login", "rejected")
		activity.Record(ctx, activity.Note{
			Kind:     activity.KindError,
			Action:   "Failed Login Attempt",
			Details:  "Failed login attempt",
			Severity: activity.SeverityWarning,
		})
		return nil, apperr.ErrInvalidCredentials
	}

	s.metrics.Auth("login", "ok")
	activity.Record(ctx, activity.Note{
		Kind:    activity.KindUser,
		Action:  "User Login",
		Details: "Successful login",
		ActorID: u.ID,
	})
	return s.session(u)
}

// VerifyToken returns the user id carried by a valid token.
func (s *Service) VerifyToken(token string) (uuid.UUID, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, apperr.ErrInvalidToken
	}
	return id, nil
}

// ListUsers returns every account, newest first.
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	return s.users.List(ctx)
}

// Me returns the account behind an authenticated request.
func (s *Service) Me(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// EnsureAccount provisions an account unless the email is already taken.
// It reports whether a new account was created.
func (s *Service) EnsureAccount(ctx context.Context, email, password, displayName, role string) (*User, bool, error) {
	email = normaliseEmail(email)
	if !auth.ValidRole(role) {
		return nil, false, apperr.Invalidf("unknown role %q", role)
	}
	if err := validateCredentials(email, password); err != nil {
		return nil, false, err
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, false, fmt.Errorf("lookup user: %w", err)
	}

	u, err := s.create(ctx, email, password, displayName, role)
	if errors.Is(err, apperr.ErrDuplicateIdentity) {
		// Lost a race with a concurrent provisioner.
		existing, err := s.users.GetByEmail(ctx, email)
		return existing, false, err
	}
	if err != nil {
		return nil, false, err
	}
	s.logger.Info().Str("user_id", u.ID.String()).Str("role", role).Msg("account provisioned")
	return u, true, nil
}

func (s *Service) create(ctx context.Context, email, password, displayName, role string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  strings.TrimSpace(displayName),
		Role:         role,
	}
	if u.DisplayName == "" {
		u.DisplayName = email
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) session(u *User) (*Session, error) {
	token, exp, err := s.tokens.Issue(u.ID, []string{u.Role})
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{Token: token, ExpiresAt: exp, User: u}, nil
}
