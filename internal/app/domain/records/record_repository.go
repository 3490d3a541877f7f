package records

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

var _ Repository = (*PostgresRepository)(nil)

// Repository stores medical records. Every call is scoped to the owning
// user; a record owned by someone else behaves as missing.
type Repository interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.MedicalRecord, error)
	Create(ctx context.Context, record *models.MedicalRecord) error
	Update(ctx context.Context, record *models.MedicalRecord) error
	Delete(ctx context.Context, userID, recordID uuid.UUID) error
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var recordColumns = []string{
	"id", "user_id", "date", "diagnosis", "medications", "doctor", "hospital",
	"follow_up_date", "notes", "created_at", "updated_at",
}

type PostgresRepository struct {
	logger *zap.Logger
	db     database.DBTX
}

func NewPostgresRepository(db database.DBTX, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{logger: logger, db: db}
}

func startSpan(ctx context.Context, name, statement string) (context.Context, trace.Span) {
	return otel.Tracer("medical-record-api").Start(ctx, "RecordsRepository."+name, trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.statement", statement),
	))
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.MedicalRecord, error) {
	ctx, span := startSpan(ctx, "ListByUser", "SELECT FROM medical_records")
	defer span.End()

	query, args, err := psql.Select(recordColumns...).
		From("medical_records").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("date DESC", "created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list query: %w", err)
	}

	start := time.Now()
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		database.TrackQuery(ctx, "ListRecords", start, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database error")
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records := make([]models.MedicalRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			database.TrackQuery(ctx, "ListRecords", start, err)
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *rec)
	}
	err = rows.Err()
	database.TrackQuery(ctx, "ListRecords", start, err)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed iterating records: %w", err)
	}

	span.SetAttributes(attribute.Int("records.count", len(records)))
	return records, nil
}

func (r *PostgresRepository) Create(ctx context.Context, rec *models.MedicalRecord) error {
	ctx, span := startSpan(ctx, "Create", "INSERT INTO medical_records ...")
	defer span.End()

	query, args, err := psql.Insert("medical_records").
		Columns("id", "user_id", "date", "diagnosis", "medications", "doctor", "hospital", "follow_up_date", "notes").
		Values(rec.ID, rec.UserID, rec.Date, rec.Diagnosis, rec.Medications, rec.Doctor, rec.Hospital, rec.FollowUpDate, rec.Notes).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	start := time.Now()
	err = r.db.QueryRow(ctx, query, args...).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	database.TrackQuery(ctx, "CreateRecord", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database error")
		r.logger.Error("Error inserting medical record", zap.String("userID", rec.UserID.String()), zap.Error(err))
		return fmt.Errorf("failed to create record: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, rec *models.MedicalRecord) error {
	ctx, span := startSpan(ctx, "Update", "UPDATE medical_records ...")
	defer span.End()

	query, args, err := psql.Update("medical_records").
		Set("date", rec.Date).
		Set("diagnosis", rec.Diagnosis).
		Set("medications", rec.Medications).
		Set("doctor", rec.Doctor).
		Set("hospital", rec.Hospital).
		Set("follow_up_date", rec.FollowUpDate).
		Set("notes", rec.Notes).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": rec.ID, "user_id": rec.UserID}).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	start := time.Now()
	err = r.db.QueryRow(ctx, query, args...).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	database.TrackQuery(ctx, "UpdateRecord", start, err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("record %s: %w", rec.ID, models.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database error")
		return fmt.Errorf("failed to update record: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, recordID uuid.UUID) error {
	ctx, span := startSpan(ctx, "Delete", "DELETE FROM medical_records")
	defer span.End()

	query, args, err := psql.Delete("medical_records").
		Where(sq.Eq{"id": recordID, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}

	start := time.Now()
	tag, err := r.db.Exec(ctx, query, args...)
	database.TrackQuery(ctx, "DeleteRecord", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database error")
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("record %s: %w", recordID, models.ErrNotFound)
	}
	return nil
}

func scanRecord(row pgx.Row) (*models.MedicalRecord, error) {
	var rec models.MedicalRecord
	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Date,
		&rec.Diagnosis,
		&rec.Medications,
		&rec.Doctor,
		&rec.Hospital,
		&rec.FollowUpDate,
		&rec.Notes,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
