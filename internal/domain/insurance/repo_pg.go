package insurance

import (
	"context"
	"errors"
	"fmt"

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

const claimCols = `id, invoice_id, patient_id, provider, policy_number, amount_cents, status,
	decided_by, decision_note, created_at, updated_at`

func scanClaim(row pgx.Row) (*Claim, error) {
	var c Claim
	var status string
	err := row.Scan(&c.ID, &c.InvoiceID, &c.PatientID, &c.Provider, &c.PolicyNumber,
		&c.AmountCents, &status, &c.DecidedBy, &c.DecisionNote, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Status = ClaimStatus(status)
	return &c, nil
}

func (r *repoPG) Create(ctx context.Context, c *Claim) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO claim (id, invoice_id, patient_id, provider, policy_number, amount_cents, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		c.ID, c.InvoiceID, c.PatientID, c.Provider, c.PolicyNumber, c.AmountCents, string(c.Status))
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Claim, error) {
	c, err := scanClaim(r.conn(ctx).QueryRow(ctx, `SELECT `+claimCols+` FROM claim WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *repoPG) Update(ctx context.Context, c *Claim) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE claim SET status=$2, decided_by=$3, decision_note=$4, updated_at=NOW()
		WHERE id = $1`,
		c.ID, string(c.Status), c.DecidedBy, c.DecisionNote)
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Claim, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+claimCols+` FROM claim
		WHERE patient_id = $1
		ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectClaims(rows)
}

func (r *repoPG) ListByStatus(ctx context.Context, status ClaimStatus, limit, offset int) ([]*Claim, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM claim WHERE status = $1`, string(status)).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM claim WHERE status = $1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`, claimCols)
	rows, err := r.conn(ctx).Query(ctx, query, string(status), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items, err := collectClaims(rows)
	return items, total, err
}

func collectClaims(rows pgx.Rows) ([]*Claim, error) {
	var items []*Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}
