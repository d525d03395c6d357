package vendors

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saldo-id/saldo/internal/masterdata/shared"
	"github.com/saldo-id/saldo/internal/platform/httpx"
	internalShared "github.com/saldo-id/saldo/internal/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Vendor, int, error)
	Get(ctx context.Context, id int64) (Vendor, error)
	Create(ctx context.Context, vendor Vendor) (Vendor, error)
	Update(ctx context.Context, id int64, vendor Vendor) error
	SetActive(ctx context.Context, id int64, active bool) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const vendorColumns = `id, name, npwp, address, email, phone, subject_to_pph23, pph23_rate, is_active, created_at, updated_at`

func scanVendor(row pgx.Row) (Vendor, error) {
	var v Vendor
	err := row.Scan(&v.ID, &v.Name, &v.NPWP, &v.Address, &v.Email, &v.Phone,
		&v.SubjectToPPh23, &v.PPh23Rate, &v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Vendor{}, internalShared.ErrNotFound
	}
	return v, err
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Vendor, int, error) {
	f := filters.Normalize()
	search := "%" + f.Search + "%"

	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM vendors WHERE name ILIKE $1 OR npwp ILIKE $1`, search,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count vendors: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+vendorColumns+` FROM vendors
		 WHERE name ILIKE $1 OR npwp ILIKE $1
		 ORDER BY name
		 LIMIT $2 OFFSET $3`, search, f.Limit, f.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list vendors: %w", err)
	}
	defer rows.Close()

	var out []Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Vendor, error) {
	return scanVendor(r.db.QueryRow(ctx,
		`SELECT `+vendorColumns+` FROM vendors WHERE id = $1`, id))
}

func (r *repository) Create(ctx context.Context, vendor Vendor) (Vendor, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO vendors (name, npwp, address, email, phone, subject_to_pph23, pph23_rate, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		 RETURNING `+vendorColumns,
		vendor.Name, vendor.NPWP, vendor.Address, vendor.Email, vendor.Phone,
		vendor.SubjectToPPh23, vendor.PPh23Rate)
	v, err := scanVendor(row)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Vendor{}, fmt.Errorf("%w: vendor with this NPWP already exists", httpx.ErrDuplicate)
	}
	return v, err
}

func (r *repository) Update(ctx context.Context, id int64, vendor Vendor) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE vendors
		 SET name = $2, npwp = $3, address = $4, email = $5, phone = $6,
		     subject_to_pph23 = $7, pph23_rate = $8, updated_at = NOW()
		 WHERE id = $1`,
		id, vendor.Name, vendor.NPWP, vendor.Address, vendor.Email, vendor.Phone,
		vendor.SubjectToPPh23, vendor.PPh23Rate)
	if err != nil {
		return fmt.Errorf("update vendor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return internalShared.ErrNotFound
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE vendors SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set vendor active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return internalShared.ErrNotFound
	}
	return nil
}
