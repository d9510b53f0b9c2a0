package lab

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

const orderCols = `id, patient_id, ordered_by, test_code, test_name, priority, status,
	created_at, updated_at`

const resultCols = `id, order_id, findings, value, unit, reference_range, entered_by,
	verified_by, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var priority, status string
	err := row.Scan(&o.ID, &o.PatientID, &o.OrderedBy, &o.TestCode, &o.TestName, &priority,
		&status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Priority = Priority(priority)
	o.Status = OrderStatus(status)
	return &o, nil
}

func scanResult(row pgx.Row) (*Result, error) {
	var res Result
	err := row.Scan(&res.ID, &res.OrderID, &res.Findings, &res.Value, &res.Unit,
		&res.ReferenceRange, &res.EnteredBy, &res.VerifiedBy, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *repoPG) CreateOrder(ctx context.Context, o *Order) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO lab_order (id, patient_id, ordered_by, test_code, test_name, priority, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		o.ID, o.PatientID, o.OrderedBy, o.TestCode, o.TestName, string(o.Priority), string(o.Status))
	return err
}

func (r *repoPG) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := scanOrder(r.conn(ctx).QueryRow(ctx, `SELECT `+orderCols+` FROM lab_order WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

func (r *repoPG) UpdateOrder(ctx context.Context, o *Order) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_order SET priority=$2, status=$3, updated_at=NOW()
		WHERE id = $1`,
		o.ID, string(o.Priority), string(o.Status))
	return err
}

func (r *repoPG) ListOrders(ctx context.Context, f ListFilter, limit, offset int) ([]*Order, int, error) {
	where := ``
	args := []interface{}{}
	if f.Status != "" {
		where = ` WHERE status = $1`
		args = append(args, string(f.Status))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM lab_order`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM lab_order%s ORDER BY created_at ASC LIMIT $%d OFFSET $%d`,
		orderCols, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items, err := collectOrders(rows)
	return items, total, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Order, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+orderCols+` FROM lab_order
		WHERE patient_id = $1
		ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func collectOrders(rows pgx.Rows) ([]*Order, error) {
	var items []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

func (r *repoPG) CreateResult(ctx context.Context, res *Result) error {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO lab_result (id, order_id, findings, value, unit, reference_range, entered_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		res.ID, res.OrderID, res.Findings, res.Value, res.Unit, res.ReferenceRange, res.EnteredBy)
	return err
}

func (r *repoPG) GetResultByOrder(ctx context.Context, orderID uuid.UUID) (*Result, error) {
	res, err := scanResult(r.conn(ctx).QueryRow(ctx,
		`SELECT `+resultCols+` FROM lab_result WHERE order_id = $1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return res, err
}

func (r *repoPG) Verify(ctx context.Context, orderID, verifiedBy uuid.UUID) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		if _, err := r.conn(ctx).Exec(ctx, `
			UPDATE lab_result SET verified_by=$2, updated_at=NOW()
			WHERE order_id = $1`, orderID, verifiedBy); err != nil {
			return err
		}
		_, err := r.conn(ctx).Exec(ctx, `
			UPDATE lab_order SET status=$2, updated_at=NOW()
			WHERE id = $1`, orderID, string(StatusVerified))
		return err
	})
}
