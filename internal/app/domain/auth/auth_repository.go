package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/medical-record/internal/app/models"
	database "github.com/FACorreiaa/medical-record/internal/db"
)

var _ AuthRepo = (*PostgresAuthRepo)(nil)

// AuthRepo is the credential store.
type AuthRepo interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// FindByUsernameOrEmail returns the first user holding either
	// identifier. It backs the registration pre-check only.
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error)
	// CreateUser inserts user with an already hashed password and fills the
	// timestamps. A unique violation returns *models.ConflictError.
	CreateUser(ctx context.Context, user *models.User) error
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var userColumns = []string{"id", "username", "email", "password_hash", "role", "created_at", "updated_at"}

// constraint name -> request field
var uniqueFields = map[string]string{
	"users_username_key": "username",
	"users_email_key":    "email",
}

type PostgresAuthRepo struct {
	logger *zap.Logger
	db     database.DBTX
}

func NewPostgresAuthRepo(db database.DBTX, logger *zap.Logger) *PostgresAuthRepo {
	return &PostgresAuthRepo{
		logger: logger,
		db:     db,
	}
}

func (r *PostgresAuthRepo) startSpan(ctx context.Context, name, statement string) (context.Context, trace.Span) {
	return otel.Tracer("medical-record-api").Start(ctx, name, trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.statement", statement),
	))
}

func (r *PostgresAuthRepo) getUserWhere(ctx context.Context, op string, where sq.Sqlizer) (*models.User, error) {
	ctx, span := r.startSpan(ctx, "PostgresAuthRepo."+op, "SELECT FROM users")
	defer span.End()

	query, args, err := psql.Select(userColumns...).From("users").Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build user query: %w", err)
	}

	start := time.Now()
	user, err := scanUser(r.db.QueryRow(ctx, query, args...))
	database.TrackQuery(ctx, op, start, err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "user not found")
			return nil, fmt.Errorf("user not found: %w", models.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database error")
		r.logger.Error("Error fetching user", zap.String("operation", op), zap.Error(err))
		return nil, fmt.Errorf("database error fetching user: %w", err)
	}
	return user, nil
}

func (r *PostgresAuthRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getUserWhere(ctx, "GetUserByID", sq.Eq{"id": id})
}

func (r *PostgresAuthRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getUserWhere(ctx, "GetUserByUsername", sq.Eq{"username": username})
}

func (r *PostgresAuthRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUserWhere(ctx, "GetUserByEmail", sq.Eq{"email": email})
}

func (r *PostgresAuthRepo) FindByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	return r.getUserWhere(ctx, "FindByUsernameOrEmail", sq.Or{
		sq.Eq{"username": username},
		sq.Eq{"email": email},
	})
}

func (r *PostgresAuthRepo) CreateUser(ctx context.Context, user *models.User) error {
	ctx, span := r.startSpan(ctx, "PostgresAuthRepo.CreateUser", "INSERT INTO users ...")
	defer span.End()

	query, args, err := psql.Insert("users").
		Columns("id", "username", "email", "password_hash", "role").
		Values(user.ID, user.Username, user.Email, user.PasswordHash, string(user.Role)).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	start := time.Now()
	err = r.db.QueryRow(ctx, query, args...).Scan(&user.CreatedAt, &user.UpdatedAt)
	database.TrackQuery(ctx, "CreateUser", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database error")
		if constraint, ok := database.UniqueViolation(err); ok {
			if field, known := uniqueFields[constraint]; known {
				return models.NewConflictError(field)
			}
			r.logger.Error("Unexpected unique violation inserting user", zap.String("constraint", constraint), zap.Error(err))
			return fmt.Errorf("unexpected unique violation on %s: %w", constraint, err)
		}
		r.logger.Error("Error inserting user", zap.Error(err))
		return fmt.Errorf("database error registering user: %w", err)
	}

	span.SetStatus(codes.Ok, "User created")
	return nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	var role string
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	user.Role = models.Role(role)
	return &user, nil
}
