package records

import (
	"context"
	"errors"
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
	List(ctx context.Context, userID uuid.UUID) ([]models.MedicalRecord, error)
	Create(ctx context.Context, userID uuid.UUID, params models.MedicalRecordParams) (*models.MedicalRecord, error)
	Update(ctx context.Context, userID, recordID uuid.UUID, params models.MedicalRecordParams) (*models.MedicalRecord, error)
	Delete(ctx context.Context, userID, recordID uuid.UUID) error
}

type ServiceImpl struct {
	logger *zap.Logger
	repo   Repository
}

func NewService(repo Repository, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{logger: logger, repo: repo}
}

// recordInput is the trimmed, resolved form of MedicalRecordParams.
type recordInput struct {
	Date         *time.Time `json:"date"`
	Diagnosis    string     `json:"diagnosis"`
	Medications  string     `json:"medications"`
	Doctor       string     `json:"doctor"`
	Hospital     string     `json:"hospital"`
	FollowUpDate *time.Time `json:"followUpDate"`
	Notes        string     `json:"notes"`
}

func newRecordInput(p models.MedicalRecordParams) recordInput {
	return recordInput{
		Date:         p.Date.Ptr(),
		Diagnosis:    strings.TrimSpace(p.Diagnosis),
		Medications:  strings.TrimSpace(p.Medications),
		Doctor:       strings.TrimSpace(p.Doctor),
		Hospital:     strings.TrimSpace(p.Hospital),
		FollowUpDate: p.FollowUpDate.Ptr(),
		Notes:        strings.TrimSpace(p.Notes),
	}
}

func (in recordInput) Validate() error {
	return validate.Struct(&in,
		validation.Field(&in.Date, validation.Required),
		validation.Field(&in.Diagnosis, validation.Required, validation.Length(1, 500)),
		validation.Field(&in.Medications, validation.Required, validation.Length(1, 1000)),
		validation.Field(&in.Doctor, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Hospital, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.FollowUpDate, validation.By(notBefore(in.Date))),
		validation.Field(&in.Notes, validation.Length(0, 2000)),
	)
}

// notBefore rejects a follow-up date earlier than the visit date.
func notBefore(date *time.Time) validation.RuleFunc {
	return func(value interface{}) error {
		followUp, _ := value.(*time.Time)
		if followUp == nil || date == nil {
			return nil
		}
		if followUp.Before(*date) {
			return errors.New("must not be before the record date")
		}
		return nil
	}
}

func (in recordInput) apply(rec *models.MedicalRecord) {
	rec.Date = in.Date.UTC()
	rec.Diagnosis = in.Diagnosis
	rec.Medications = in.Medications
	rec.Doctor = in.Doctor
	rec.Hospital = in.Hospital
	rec.FollowUpDate = in.FollowUpDate
	rec.Notes = in.Notes
}

func (s *ServiceImpl) List(ctx context.Context, userID uuid.UUID) ([]models.MedicalRecord, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *ServiceImpl) Create(ctx context.Context, userID uuid.UUID, params models.MedicalRecordParams) (*models.MedicalRecord, error) {
	in := newRecordInput(params)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	rec := &models.MedicalRecord{ID: uuid.New(), UserID: userID}
	in.apply(rec)
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info("Medical record created",
		zap.String("userID", userID.String()),
		zap.String("recordID", rec.ID.String()))
	return rec, nil
}

func (s *ServiceImpl) Update(ctx context.Context, userID, recordID uuid.UUID, params models.MedicalRecordParams) (*models.MedicalRecord, error) {
	in := newRecordInput(params)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	rec := &models.MedicalRecord{ID: recordID, UserID: userID}
	in.apply(rec)
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *ServiceImpl) Delete(ctx context.Context, userID, recordID uuid.UUID) error {
	if err := s.repo.Delete(ctx, userID, recordID); err != nil {
		return err
	}
	s.logger.Info("Medical record deleted",
		zap.String("userID", userID.String()),
		zap.String("recordID", recordID.String()))
	return nil
}
