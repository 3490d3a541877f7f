package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/FACorreiaa/medical-record/internal/app/models"
	"github.com/FACorreiaa/medical-record/internal/app/observability/metrics"
)

const (
	msgInvalidCredentials = "Invalid credentials"
	msgInvalidToken       = "Invalid or expired token"
	msgUserNotFound       = "User not found"
	msgNotAuthenticated   = "Not authenticated"
)

const defaultBcryptCost = 12

// Ensure implementation satisfies the interface
var _ AuthService = (*AuthServiceImpl)(nil)

// AuthService defines the business logic contract.
type AuthService interface {
	// Register creates the account and returns it without the hash, plus a
	// freshly issued token.
	Register(ctx context.Context, req RegisterRequest) (*models.User, string, error)
	Login(ctx context.Context, req LoginRequest) (*models.User, string, error)
	// Authenticate verifies token and re-reads its subject from the store.
	Authenticate(ctx context.Context, token string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// AuthServiceImpl provides the implementation for AuthService.
type AuthServiceImpl struct {
	logger     *zap.Logger
	repo       AuthRepo
	tokens     *TokenIssuer
	bcryptCost int
}

// NewAuthService creates a new authentication service instance.
func NewAuthService(repo AuthRepo, tokens *TokenIssuer, bcryptCost int, logger *zap.Logger) *AuthServiceImpl {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		logger.Warn("bcrypt cost out of range, using default",
			zap.Int("requested", bcryptCost), zap.Int("cost", defaultBcryptCost))
		bcryptCost = defaultBcryptCost
	}
	return &AuthServiceImpl{
		logger:     logger,
		repo:       repo,
		tokens:     tokens,
		bcryptCost: bcryptCost,
	}
}

// normalizeIdentifier trims and lowercases a username or email. A Caser
// holds state, so one is built per call.
func normalizeIdentifier(s string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

func (s *AuthServiceImpl) Register(ctx context.Context, req RegisterRequest) (*models.User, string, error) {
	ctx, span := otel.Tracer("medical-record-api").Start(ctx, "AuthService.Register")
	defer span.End()

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := req.Validate(); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return nil, "", err
	}

	username := normalizeIdentifier(req.Username)
	email := normalizeIdentifier(req.Email)
	l := s.logger.With(zap.String("method", "Register"), zap.String("username", username))
	span.SetAttributes(attribute.String("username", username))

	// Fast path only. The unique constraints decide races.
	existing, err := s.repo.FindByUsernameOrEmail(ctx, username, email)
	switch {
	case err == nil:
		field := "email"
		if existing.Username == username {
			field = "username"
		}
		l.Info("Registration rejected, identifier taken", zap.String("field", field))
		span.SetStatus(codes.Error, "conflict")
		return nil, "", models.NewConflictError(field)
	case !errors.Is(err, models.ErrNotFound):
		span.RecordError(err)
		return nil, "", fmt.Errorf("registration pre-check: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		span.RecordError(err)
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		var conflict *models.ConflictError
		if errors.As(err, &conflict) {
			l.Info("Registration lost uniqueness race", zap.String("field", conflict.Field))
			span.SetStatus(codes.Error, "conflict")
			return nil, "", conflict
		}
		span.RecordError(err)
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.issue(ctx, user)
	if err != nil {
		span.RecordError(err)
		return nil, "", err
	}

	l.Info("User registered", zap.String("userID", user.ID.String()))
	span.SetStatus(codes.Ok, "registered")
	return user.Sanitized(), token, nil
}

// Login validates credentials. Unknown users and wrong passwords get the
// same error.
func (s *AuthServiceImpl) Login(ctx context.Context, req LoginRequest) (*models.User, string, error) {
	ctx, span := otel.Tracer("medical-record-api").Start(ctx, "AuthService.Login")
	defer span.End()

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := req.Validate(); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return nil, "", err
	}

	var (
		user *models.User
		err  error
	)
	if req.Username != "" {
		user, err = s.repo.GetUserByUsername(ctx, normalizeIdentifier(req.Username))
	} else {
		user, err = s.repo.GetUserByEmail(ctx, normalizeIdentifier(req.Email))
	}
	l := s.logger.With(zap.String("method", "Login"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			l.Warn("Login for unknown identifier")
			span.SetStatus(codes.Error, "invalid credentials")
			return nil, "", models.NewPublicError(models.ErrUnauthenticated, msgInvalidCredentials)
		}
		span.RecordError(err)
		return nil, "", fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		l.Warn("Password comparison failed", zap.String("userID", user.ID.String()))
		span.SetStatus(codes.Error, "invalid credentials")
		return nil, "", models.NewPublicError(models.ErrUnauthenticated, msgInvalidCredentials)
	}

	token, err := s.issue(ctx, user)
	if err != nil {
		span.RecordError(err)
		return nil, "", err
	}

	l.Info("Login successful", zap.String("userID", user.ID.String()))
	span.SetStatus(codes.Ok, "authenticated")
	return user.Sanitized(), token, nil
}

func (s *AuthServiceImpl) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		s.logger.Debug("Token rejected", zap.Error(err))
		return nil, models.NewPublicError(models.ErrUnauthenticated, msgInvalidToken)
	}

	user, err := s.repo.GetUserByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewPublicError(models.ErrUnauthenticated, msgUserNotFound)
		}
		return nil, fmt.Errorf("failed to resolve token subject: %w", err)
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.String("user.id", user.ID.String()))
	return user.Sanitized(), nil
}

func (s *AuthServiceImpl) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.Sanitized(), nil
}

func (s *AuthServiceImpl) issue(ctx context.Context, user *models.User) (string, error) {
	token, _, err := s.tokens.Issue(user)
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}
	metrics.Get().TokensIssuedTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("role", string(user.Role))))
	return token, nil
}
