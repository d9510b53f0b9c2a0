package medicalrecord

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebridge/hms/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const recordCols = `id, patient_id, doctor_id, appointment_id, diagnosis, symptoms,
	treatment_plan, notes, current_version, created_at, updated_at`

func scanRecord(row pgx.Row) (*MedicalRecord, error) {
	var m MedicalRecord
	err := row.Scan(&m.ID, &m.PatientID, &m.DoctorID, &m.AppointmentID, &m.Diagnosis, &m.Symptoms,
		&m.TreatmentPlan, &m.Notes, &m.CurrentVersion, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repoPG) Create(ctx context.Context, m *MedicalRecord) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medical_record (id, patient_id, doctor_id, appointment_id, diagnosis, symptoms,
			treatment_plan, notes, current_version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		m.ID, m.PatientID, m.DoctorID, m.AppointmentID, m.Diagnosis, m.Symptoms,
		m.TreatmentPlan, m.Notes, m.CurrentVersion)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	m, err := scanRecord(r.conn(ctx).QueryRow(ctx, `SELECT `+recordCols+` FROM medical_record WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

func (r *repoPG) ApplyUpdate(ctx context.Context, m *MedicalRecord, expectedVersion int, snap *Version) (bool, error) {
	applied := false
	err := db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		// Guard the head first: if the version moved, nothing is written,
		// including the snapshot.
		tag, err := r.conn(ctx).Exec(ctx, `
			UPDATE medical_record
			SET diagnosis=$3, symptoms=$4, treatment_plan=$5, notes=$6,
				current_version = current_version + 1, updated_at = NOW()
			WHERE id = $1 AND current_version = $2`,
			m.ID, expectedVersion, m.Diagnosis, m.Symptoms, m.TreatmentPlan, m.Notes)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		_, err = r.conn(ctx).Exec(ctx, `
			INSERT INTO medical_record_version (record_id, version, diagnosis, symptoms,
				treatment_plan, notes, updated_by, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			snap.RecordID, snap.Version, snap.Diagnosis, snap.Symptoms,
			snap.TreatmentPlan, snap.Notes, snap.UpdatedBy, snap.UpdatedAt)
		if err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}

func (r *repoPG) ListVersions(ctx context.Context, recordID uuid.UUID) ([]*Version, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT record_id, version, diagnosis, symptoms, treatment_plan, notes, updated_by, updated_at
		FROM medical_record_version
		WHERE record_id = $1
		ORDER BY version`, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Version
	for rows.Next() {
		var v Version
		if err := rows.Scan(&v.RecordID, &v.Version, &v.Diagnosis, &v.Symptoms,
			&v.TreatmentPlan, &v.Notes, &v.UpdatedBy, &v.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, &v)
	}
	return items, rows.Err()
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	return r.list(ctx, `patient_id`, patientID, limit, offset)
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	return r.list(ctx, `doctor_id`, doctorID, limit, offset)
}

func (r *repoPG) list(ctx context.Context, col string, id uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM medical_record WHERE `+col+` = $1`, id).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+recordCols+` FROM medical_record
		WHERE `+col+` = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, id, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*MedicalRecord
	for rows.Next() {
		m, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}
