package bedstatus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/itsaddyon/MediBridge/internal/platform/apperr"
	"github.com/itsaddyon/MediBridge/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const hospitalCols = `id, name, total_beds, available_beds, COALESCE(extra_needs, ''), last_updated`

func (r *repoPG) List(ctx context.Context) ([]*Hospital, error) {
	list, err := r.list(ctx)
	if err != nil || len(list) > 0 {
		return list, err
	}
	if _, err := r.seed(ctx); err != nil {
		return nil, err
	}
	return r.list(ctx)
}

func (r *repoPG) list(ctx context.Context) ([]*Hospital, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+hospitalCols+` FROM hospital_bed ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list hospitals: %w", err)
	}
	defer rows.Close()

	out := []*Hospital{}
	for rows.Next() {
		h, err := scanHospital(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// seed inserts the defaults under a table lock so that concurrent first
// readers insert them once. It reports whether this call inserted them.
func (r *repoPG) seed(ctx context.Context) (bool, error) {
	seeded := false
	err := db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `LOCK TABLE hospital_bed IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return fmt.Errorf("lock hospital_bed: %w", err)
		}
		var n int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM hospital_bed`).Scan(&n); err != nil {
			return fmt.Errorf("count hospitals: %w", err)
		}
		if n > 0 {
			return nil
		}

		defaults := Defaults(time.Now().UTC())
		var (
			ids, names     []string
			totals, avails []int32
		)
		for _, h := range defaults {
			ids = append(ids, h.ID)
			names = append(names, h.Name)
			totals = append(totals, int32(h.TotalBeds))
			avails = append(avails, int32(h.AvailableBeds))
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO hospital_bed (id, name, total_beds, available_beds)
			SELECT * FROM unnest($1::text[], $2::text[], $3::int[], $4::int[])`,
			ids, names, totals, avails)
		if err != nil {
			return fmt.Errorf("seed hospitals: %w", err)
		}
		seeded = true
		return nil
	})
	return seeded, err
}

// Create seeds the defaults first so an added hospital joins them rather
// than replacing them.
func (r *repoPG) Create(ctx context.Context, h *Hospital) error {
	if _, err := r.seed(ctx); err != nil {
		return err
	}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO hospital_bed (id, name, total_beds, available_beds, extra_needs)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		RETURNING last_updated`,
		h.ID, h.Name, h.TotalBeds, h.AvailableBeds, h.ExtraNeeds,
	).Scan(&h.LastUpdated)
	if err != nil {
		return fmt.Errorf("insert hospital: %w", err)
	}
	return nil
}

// Update reads the row FOR UPDATE, applies fn and writes it back in one
// transaction. A miss on an empty table seeds the defaults and retries once.
func (r *repoPG) Update(ctx context.Context, id string, fn func(*Hospital) error) (*Hospital, error) {
	out, err := r.update(ctx, id, fn)
	if !errors.Is(err, apperr.ErrNotFound) {
		return out, err
	}
	seeded, serr := r.seed(ctx)
	if serr != nil {
		return nil, serr
	}
	if !seeded {
		return nil, err
	}
	return r.update(ctx, id, fn)
}

func (r *repoPG) update(ctx context.Context, id string, fn func(*Hospital) error) (*Hospital, error) {
	var out *Hospital
	err := db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		h, err := scanHospital(tx.QueryRow(ctx,
			`SELECT `+hospitalCols+` FROM hospital_bed WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if err := fn(h); err != nil {
			return err
		}
		out, err = scanHospital(tx.QueryRow(ctx, `
			UPDATE hospital_bed SET
				name = $2, total_beds = $3, available_beds = $4,
				extra_needs = NULLIF($5, ''), last_updated = NOW()
			WHERE id = $1
			RETURNING `+hospitalCols,
			id, h.Name, h.TotalBeds, h.AvailableBeds, h.ExtraNeeds))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func scanHospital(row pgx.Row) (*Hospital, error) {
	var h Hospital
	err := row.Scan(&h.ID, &h.Name, &h.TotalBeds, &h.AvailableBeds, &h.ExtraNeeds, &h.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan hospital: %w", err)
	}
	return &h, nil
}
