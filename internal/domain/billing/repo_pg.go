package billing

import (
	"context"
	"encoding/json"
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

const invoiceCols = `id, patient_id, items, total_cents, status, issued_by, created_at, updated_at`

const paymentCols = `id, invoice_id, amount_cents, method, received_by, created_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var items []byte
	var status string
	err := row.Scan(&inv.ID, &inv.PatientID, &items, &inv.TotalCents, &status,
		&inv.IssuedBy, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &inv.Items); err != nil {
		return nil, err
	}
	inv.Status = InvoiceStatus(status)
	return &inv, nil
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	var method string
	err := row.Scan(&p.ID, &p.InvoiceID, &p.AmountCents, &method, &p.ReceivedBy, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Method = PaymentMethod(method)
	return &p, nil
}

func (r *repoPG) CreateInvoice(ctx context.Context, inv *Invoice) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO invoice (id, patient_id, items, total_cents, status, issued_by)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		inv.ID, inv.PatientID, items, inv.TotalCents, string(inv.Status), inv.IssuedBy)
	return err
}

func (r *repoPG) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := scanInvoice(r.conn(ctx).QueryRow(ctx,
		`SELECT `+invoiceCols+` FROM invoice WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return inv, err
}

func (r *repoPG) UpdateInvoice(ctx context.Context, inv *Invoice) error {
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		UPDATE invoice SET items=$2, total_cents=$3, status=$4, updated_at=NOW()
		WHERE id = $1`,
		inv.ID, items, inv.TotalCents, string(inv.Status))
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Invoice, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+invoiceCols+` FROM invoice
		WHERE patient_id = $1
		ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, inv)
	}
	return items, rows.Err()
}

func (r *repoPG) CreatePayment(ctx context.Context, p *Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO payment (id, invoice_id, amount_cents, method, received_by)
		VALUES ($1,$2,$3,$4,$5)`,
		p.ID, p.InvoiceID, p.AmountCents, string(p.Method), p.ReceivedBy)
	return err
}

func (r *repoPG) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+paymentCols+` FROM payment
		WHERE invoice_id = $1
		ORDER BY created_at ASC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *repoPG) RecordPayment(ctx context.Context, p *Payment, markPaid bool) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		if err := r.CreatePayment(ctx, p); err != nil {
			return err
		}
		if !markPaid {
			return nil
		}
		_, err := r.conn(ctx).Exec(ctx, `
			UPDATE invoice SET status=$2, updated_at=NOW()
			WHERE id = $1`, p.InvoiceID, string(StatusPaid))
		return err
	})
}
