package labreports

import (
	"context"
	"encoding/json"
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

type Repository interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.LabReport, error)
	Create(ctx context.Context, report *models.LabReport) error
	Delete(ctx context.Context, userID, reportID uuid.UUID) error
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var reportColumns = []string{"id", "user_id", "test_name", "report_date", "results", "notes", "created_at"}

type PostgresRepository struct {
	logger *zap.Logger
	db     database.DBTX
}

func NewPostgresRepository(db database.DBTX, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{logger: logger, db: db}
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.LabReport, error) {
	ctx, span := otel.Tracer("medical-record-api").Start(ctx, "LabReportsRepository.ListByUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.statement", "SELECT FROM lab_reports"),
	))
	defer span.End()

	query, args, err := psql.Select(reportColumns...).
		From("lab_reports").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("report_date DESC", "created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list query: %w", err)
	}

	start := time.Now()
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		database.TrackQuery(ctx, "ListLabReports", start, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database error")
		return nil, fmt.Errorf("failed to list lab reports: %w", err)
	}
	defer rows.Close()

	reports := make([]models.LabReport, 0)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			database.TrackQuery(ctx, "ListLabReports", start, err)
			return nil, err
		}
		reports = append(reports, *report)
	}
	err = rows.Err()
	database.TrackQuery(ctx, "ListLabReports", start, err)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed iterating lab reports: %w", err)
	}
	return reports, nil
}

func (r *PostgresRepository) Create(ctx context.Context, report *models.LabReport) error {
	ctx, span := otel.Tracer("medical-record-api").Start(ctx, "LabReportsRepository.Create", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.statement", "INSERT INTO lab_reports ..."),
	))
	defer span.End()

	results, err := json.Marshal(report.Results)
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	query, args, err := psql.Insert("lab_reports").
		Columns("id", "user_id", "test_name", "report_date", "results", "notes").
		Values(report.ID, report.UserID, report.TestName, report.ReportDate, results, report.Notes).
		Suffix("RETURNING created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	start := time.Now()
	err = r.db.QueryRow(ctx, query, args...).Scan(&report.CreatedAt)
	database.TrackQuery(ctx, "CreateLabReport", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database error")
		r.logger.Error("Error inserting lab report", zap.String("userID", report.UserID.String()), zap.Error(err))
		return fmt.Errorf("failed to create lab report: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, reportID uuid.UUID) error {
	ctx, span := otel.Tracer("medical-record-api").Start(ctx, "LabReportsRepository.Delete", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.statement", "DELETE FROM lab_reports"),
	))
	defer span.End()

	query, args, err := psql.Delete("lab_reports").
		Where(sq.Eq{"id": reportID, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}

	start := time.Now()
	tag, err := r.db.Exec(ctx, query, args...)
	database.TrackQuery(ctx, "DeleteLabReport", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Database error")
		return fmt.Errorf("failed to delete lab report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("lab report %s: %w", reportID, models.ErrNotFound)
	}
	return nil
}

func scanReport(row pgx.Row) (*models.LabReport, error) {
	var (
		report  models.LabReport
		results []byte
	)
	if err := row.Scan(
		&report.ID,
		&report.UserID,
		&report.TestName,
		&report.ReportDate,
		&results,
		&report.Notes,
		&report.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan lab report: %w", err)
	}

	report.Results = map[string]any{}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &report.Results); err != nil {
			return nil, fmt.Errorf("failed to decode results for %s: %w", report.ID, err)
		}
	}
	return &report, nil
}
