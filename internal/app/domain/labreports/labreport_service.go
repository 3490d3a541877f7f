package labreports

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FACorreiaa/medical-record/internal/app/models"
	"github.com/FACorreiaa/medical-record/internal/pkg/validate"
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.LabReport, error)
	Create(ctx context.Context, userID uuid.UUID, params models.LabReportParams) (*models.LabReport, error)
	Delete(ctx context.Context, userID, reportID uuid.UUID) error
}

type ServiceImpl struct {
	logger *zap.Logger
	repo   Repository
	now    func() time.Time
}

func NewService(repo Repository, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{logger: logger, repo: repo, now: time.Now}
}

type reportInput struct {
	TestName string `json:"testName"`
	Notes    string `json:"notes"`
}

func (in reportInput) Validate() error {
	return validate.Struct(&in,
		validation.Field(&in.TestName, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.Notes, validation.Length(0, 2000)),
	)
}

func (s *ServiceImpl) List(ctx context.Context, userID uuid.UUID) ([]models.LabReport, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Create stores a report. A missing report date means "now" and missing
// results mean an empty object.
func (s *ServiceImpl) Create(ctx context.Context, userID uuid.UUID, params models.LabReportParams) (*models.LabReport, error) {
	in := reportInput{
		TestName: strings.TrimSpace(params.TestName),
		Notes:    strings.TrimSpace(params.Notes),
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	reportDate := s.now().UTC()
	if d := params.ReportDate.Ptr(); d != nil {
		reportDate = d.UTC()
	}
	results := params.Results
	if results == nil {
		results = map[string]any{}
	}

	report := &models.LabReport{
		ID:         uuid.New(),
		UserID:     userID,
		TestName:   in.TestName,
		ReportDate: reportDate,
		Results:    results,
		Notes:      in.Notes,
	}
	if err := s.repo.Create(ctx, report); err != nil {
		return nil, err
	}

	s.logger.Info("Lab report created",
		zap.String("userID", userID.String()),
		zap.String("reportID", report.ID.String()))
	return report, nil
}

func (s *ServiceImpl) Delete(ctx context.Context, userID, reportID uuid.UUID) error {
	return s.repo.Delete(ctx, userID, reportID)
}
