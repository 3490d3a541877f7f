package records

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/medical-record/internal/app/models"
)

func newMockRepo(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return NewPostgresRepository(mockPool, zap.NewNop()), mockPool
}

func TestPostgresRepository_ListByUser(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	visit := time.Date(2025, 8, 12, 0, 0, 0, 0, time.UTC)
	followUp := visit.AddDate(0, 0, 14)

	t.Run("NewestFirst", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		mockPool.ExpectQuery(`SELECT (.+) FROM medical_records WHERE user_id = \$1 ORDER BY date DESC, created_at DESC`).
			WithArgs(userID.String()).
			WillReturnRows(pgxmock.NewRows(recordColumns).
				AddRow(uuid.New(), userID, visit, "Flu", "Rest", "Dr. Who", "General", &followUp, "", visit, visit).
				AddRow(uuid.New(), userID, visit.AddDate(0, -1, 0), "Cold", "Tea", "Dr. Who", "General", (*time.Time)(nil), "note", visit, visit))

		got, err := repo.ListByUser(ctx, userID)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "Flu", got[0].Diagnosis)
		require.NotNil(t, got[0].FollowUpDate)
		assert.True(t, got[0].FollowUpDate.Equal(followUp))
		assert.Nil(t, got[1].FollowUpDate)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("EmptyIsNotNil", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		mockPool.ExpectQuery(`SELECT (.+) FROM medical_records`).
			WithArgs(userID.String()).
			WillReturnRows(pgxmock.NewRows(recordColumns))

		got, err := repo.ListByUser(ctx, userID)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("DatabaseError", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		mockPool.ExpectQuery(`SELECT (.+) FROM medical_records`).
			WithArgs(userID.String()).
			WillReturnError(errors.New("connection reset"))

		_, err := repo.ListByUser(ctx, userID)
		assert.Error(t, err)
	})
}

func TestPostgresRepository_Create(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	created := time.Date(2025, 8, 12, 9, 0, 0, 0, time.UTC)
	rec := &models.MedicalRecord{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Date:        created,
		Diagnosis:   "Flu",
		Medications: "Rest",
		Doctor:      "Dr. Who",
		Hospital:    "General",
	}

	mockPool.ExpectQuery(`INSERT INTO medical_records \(id,user_id,date,diagnosis,medications,doctor,hospital,follow_up_date,notes\) VALUES \(\$1,\$2,\$3,\$4,\$5,\$6,\$7,\$8,\$9\) RETURNING created_at, updated_at`).
		WithArgs(rec.ID, rec.UserID, rec.Date, "Flu", "Rest", "Dr. Who", "General", pgxmock.AnyArg(), "").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(created, created))

	require.NoError(t, repo.Create(context.Background(), rec))
	assert.Equal(t, created, rec.CreatedAt)
	assert.Equal(t, created, rec.UpdatedAt)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresRepository_Update(t *testing.T) {
	ctx := context.Background()
	rec := func() *models.MedicalRecord {
		return &models.MedicalRecord{
			ID:          uuid.New(),
			UserID:      uuid.New(),
			Date:        time.Date(2025, 8, 12, 0, 0, 0, 0, time.UTC),
			Diagnosis:   "Flu",
			Medications: "Rest",
			Doctor:      "Dr. Who",
			Hospital:    "General",
		}
	}
	updateSQL := `UPDATE medical_records SET date = \$1, diagnosis = \$2, medications = \$3, doctor = \$4, hospital = \$5, follow_up_date = \$6, notes = \$7, updated_at = NOW\(\) WHERE id = \$8 AND user_id = \$9 RETURNING created_at, updated_at`

	t.Run("Success", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		r := rec()
		now := time.Now().UTC()
		mockPool.ExpectQuery(updateSQL).
			WithArgs(r.Date, "Flu", "Rest", "Dr. Who", "General", pgxmock.AnyArg(), "", r.ID.String(), r.UserID.String()).
			WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

		require.NoError(t, repo.Update(ctx, r))
		assert.Equal(t, now, r.UpdatedAt)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("NotOwned", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		r := rec()
		mockPool.ExpectQuery(updateSQL).
			WithArgs(r.Date, "Flu", "Rest", "Dr. Who", "General", pgxmock.AnyArg(), "", r.ID.String(), r.UserID.String()).
			WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}))

		err := repo.Update(ctx, r)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestPostgresRepository_Delete(t *testing.T) {
	ctx := context.Background()
	userID, recordID := uuid.New(), uuid.New()
	deleteSQL := `DELETE FROM medical_records WHERE id = \$1 AND user_id = \$2`

	t.Run("Deleted", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		mockPool.ExpectExec(deleteSQL).
			WithArgs(recordID.String(), userID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, repo.Delete(ctx, userID, recordID))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Missing", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		mockPool.ExpectExec(deleteSQL).
			WithArgs(recordID.String(), userID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		assert.ErrorIs(t, repo.Delete(ctx, userID, recordID), models.ErrNotFound)
	})

	t.Run("DatabaseError", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		mockPool.ExpectExec(deleteSQL).
			WithArgs(recordID.String(), userID.String()).
			WillReturnError(errors.New("connection reset"))

		err := repo.Delete(ctx, userID, recordID)
		require.Error(t, err)
		assert.NotErrorIs(t, err, models.ErrNotFound)
	})
}
