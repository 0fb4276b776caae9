package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
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

const patientCols = `id, owner_user_id, first_name, last_name,
	to_char(date_of_birth, 'YYYY-MM-DD'), phone, notes, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patient (id, owner_user_id, first_name, last_name, date_of_birth, phone, notes)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7)
		RETURNING created_at, updated_at`,
		p.ID, p.OwnerUserID, p.FirstName, p.LastName, p.DateOfBirth, p.Phone, p.Notes,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *repoPG) ListByOwner(ctx context.Context, owner uuid.UUID) ([]*Patient, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+patientCols+` FROM patient
		WHERE owner_user_id = $1
		ORDER BY created_at DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	patients := []*Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

func (r *repoPG) GetOwned(ctx context.Context, owner, id uuid.UUID) (*Patient, error) {
	return scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+patientCols+` FROM patient
		WHERE id = $1 AND owner_user_id = $2`, id, owner))
}

// UpdateOwned writes only the fields present in patch, in one statement whose
// WHERE clause carries the ownership check.
func (r *repoPG) UpdateOwned(ctx context.Context, owner, id uuid.UUID, patch Patch) (*Patient, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{id, owner}
	set := func(expr string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}
	if patch.FirstName != nil {
		set("first_name = $%d", *patch.FirstName)
	}
	if patch.LastName != nil {
		set("last_name = $%d", *patch.LastName)
	}
	if patch.DateOfBirth != nil {
		set("date_of_birth = $%d::date", optional(*patch.DateOfBirth))
	}
	if patch.Phone != nil {
		set("phone = $%d", optional(*patch.Phone))
	}
	if patch.Notes != nil {
		set("notes = $%d", optional(*patch.Notes))
	}

	return scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE patient SET `+strings.Join(sets, ", ")+`
		WHERE id = $1 AND owner_user_id = $2
		RETURNING `+patientCols, args...))
}

func (r *repoPG) DeleteOwned(ctx context.Context, owner, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM patient WHERE id = $1 AND owner_user_id = $2`, id, owner)
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.OwnerUserID, &p.FirstName, &p.LastName,
		&p.DateOfBirth, &p.Phone, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan patient: %w", err)
	}
	return &p, nil
}
