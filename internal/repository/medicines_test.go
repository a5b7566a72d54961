package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/notclassx-sys/FAM-ROOM/internal/models"
)

func setupMockMedicinesDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *MedicineRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewMedicineRepository(db, logger)

	return db, mock, repo
}

func TestGetMedicines_Success(t *testing.T) {
	db, mock, repo := setupMockMedicinesDB(t)
	defer db.Close()

	ctx := context.Background()
	roomID := uuid.New().String()
	medID := uuid.New().String()

	rows := sqlmock.NewRows([]string{
		"id", "family_room_id", "elder_user_id", "medicine_name",
		"timings", "days_of_week", "notes", "taken_today",
	}).AddRow(
		medID, roomID, uuid.New().String(), "Metformin",
		`{09:00,21:00}`, `{Mon,Tue,Wed,Thu,Fri,Sat,Sun}`, "after meals", false,
	)

	mock.ExpectQuery(`SELECT`).
		WithArgs(roomID).
		WillReturnRows(rows)

	meds, err := repo.GetMedicines(ctx, roomID)

	require.NoError(t, err)
	require.Len(t, meds, 1)
	assert.Equal(t, medID, meds[0].ID)
	assert.Equal(t, "Metformin", meds[0].Name)
	assert.Equal(t, []string{"09:00", "21:00"}, meds[0].Timings)
	assert.False(t, meds[0].TakenToday)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveMedicine_Success(t *testing.T) {
	db, mock, repo := setupMockMedicinesDB(t)
	defer db.Close()

	ctx := context.Background()
	med := &models.MedicineSchedule{
		ID:          uuid.New().String(),
		RoomID:      uuid.New().String(),
		OwnerUserID: uuid.New().String(),
		Name:        "Aspirin",
		Timings:     []string{"09:00"},
		DaysOfWeek:  []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"},
		Notes:       "",
	}

	mock.ExpectExec(`INSERT INTO medicines`).
		WithArgs(
			med.ID, med.RoomID, med.OwnerUserID, "Aspirin",
			pq.Array(med.Timings), pq.Array(med.DaysOfWeek), "",
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Save(ctx, med)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveMedicine_MissingName(t *testing.T) {
	db, mock, repo := setupMockMedicinesDB(t)
	defer db.Close()

	ctx := context.Background()
	med := &models.MedicineSchedule{
		ID:     uuid.New().String(),
		RoomID: uuid.New().String(),
	}

	err := repo.Save(ctx, med)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "medicine name is required")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestToggleTaken_Success(t *testing.T) {
	db, mock, repo := setupMockMedicinesDB(t)
	defer db.Close()

	ctx := context.Background()
	medID := uuid.New().String()

	mock.ExpectExec(`UPDATE medicines`).
		WithArgs(medID, true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ToggleTaken(ctx, medID, true)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestToggleTaken_NotFound(t *testing.T) {
	db, mock, repo := setupMockMedicinesDB(t)
	defer db.Close()

	ctx := context.Background()
	medID := uuid.New().String()

	mock.ExpectExec(`UPDATE medicines`).
		WithArgs(medID, true).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ToggleTaken(ctx, medID, true)

	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResetTakenToday_Success(t *testing.T) {
	db, mock, repo := setupMockMedicinesDB(t)
	defer db.Close()

	ctx := context.Background()
	roomID := uuid.New().String()

	mock.ExpectExec(`UPDATE medicines`).
		WithArgs(roomID).
		WillReturnResult(sqlmock.NewResult(0, 3))

	affected, err := repo.ResetTakenToday(ctx, roomID)

	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMedicine_Success(t *testing.T) {
	db, mock, repo := setupMockMedicinesDB(t)
	defer db.Close()

	ctx := context.Background()
	medID := uuid.New().String()

	mock.ExpectExec(`DELETE FROM medicines`).
		WithArgs(medID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Delete(ctx, medID)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
