package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/notclassx-sys/FAM-ROOM/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// MedicineRepository 服药计划仓库
type MedicineRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMedicineRepository 创建服药计划仓库
func NewMedicineRepository(db *sql.DB, logger *zap.Logger) *MedicineRepository {
	return &MedicineRepository{
		db:     db,
		logger: logger,
	}
}

// GetMedicines 查询房间内全部服药计划
func (r *MedicineRepository) GetMedicines(ctx context.Context, roomID string) ([]models.MedicineSchedule, error) {
	if roomID == "" {
		return nil, fmt.Errorf("room_id is required")
	}

	query := `
		SELECT
			id,
			family_room_id,
			elder_user_id,
			medicine_name,
			timings,
			days_of_week,
			notes,
			taken_today
		FROM medicines
		WHERE family_room_id = $1
		ORDER BY medicine_name ASC
	`

	rows, err := r.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, wrapStoreError("get medicines", err)
	}
	defer rows.Close()

	var meds []models.MedicineSchedule
	for rows.Next() {
		var m models.MedicineSchedule
		if err := rows.Scan(
			&m.ID,
			&m.RoomID,
			&m.OwnerUserID,
			&m.Name,
			pq.Array(&m.Timings),
			pq.Array(&m.DaysOfWeek),
			&m.Notes,
			&m.TakenToday,
		); err != nil {
			return nil, wrapStoreError("scan medicine", err)
		}
		meds = append(meds, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError("iterate medicines", err)
	}

	return meds, nil
}

// Save 新增服药计划
func (r *MedicineRepository) Save(ctx context.Context, med *models.MedicineSchedule) error {
	if med == nil {
		return fmt.Errorf("medicine is required")
	}
	if med.ID == "" {
		return fmt.Errorf("medicine id is required")
	}
	if med.RoomID == "" {
		return fmt.Errorf("room_id is required")
	}
	if med.Name == "" {
		return fmt.Errorf("medicine name is required")
	}

	query := `
		INSERT INTO medicines (
			id,
			family_room_id,
			elder_user_id,
			medicine_name,
			timings,
			days_of_week,
			notes,
			taken_today
		) VALUES ($1, $2, $3, $4, $5, $6, $7, false)
	`

	_, err := r.db.ExecContext(ctx, query,
		med.ID,
		med.RoomID,
		med.OwnerUserID,
		med.Name,
		pq.Array(med.Timings),
		pq.Array(med.DaysOfWeek),
		med.Notes,
	)
	if err != nil {
		return wrapStoreError("save medicine", err)
	}

	return nil
}

// Delete 删除服药计划
func (r *MedicineRepository) Delete(ctx context.Context, medicineID string) error {
	if medicineID == "" {
		return fmt.Errorf("medicine id is required")
	}

	query := `DELETE FROM medicines WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, medicineID)
	if err != nil {
		return wrapStoreError("delete medicine", err)
	}

	return nil
}

// ToggleTaken 标记今日已服/未服
func (r *MedicineRepository) ToggleTaken(ctx context.Context, medicineID string, taken bool) error {
	if medicineID == "" {
		return fmt.Errorf("medicine id is required")
	}

	query := `
		UPDATE medicines
		SET taken_today = $2
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, medicineID, taken)
	if err != nil {
		return wrapStoreError("toggle medicine taken", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return wrapStoreError("toggle medicine rows affected", err)
	}
	if affected == 0 {
		return fmt.Errorf("toggle medicine taken: %w", ErrNotFound)
	}

	return nil
}

// ResetTakenToday 日切时清除房间内全部今日已服标记
func (r *MedicineRepository) ResetTakenToday(ctx context.Context, roomID string) (int64, error) {
	if roomID == "" {
		return 0, fmt.Errorf("room_id is required")
	}

	query := `
		UPDATE medicines
		SET taken_today = false
		WHERE family_room_id = $1
		  AND taken_today = true
	`

	result, err := r.db.ExecContext(ctx, query, roomID)
	if err != nil {
		return 0, wrapStoreError("reset medicines taken", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, wrapStoreError("reset medicines rows affected", err)
	}

	return affected, nil
}
