package referral

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/itsaddyon/MediBridge/internal/platform/apperr"
	"github.com/itsaddyon/MediBridge/internal/platform/db"
	"github.com/itsaddyon/MediBridge/pkg/pagination"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const referralCols = `id, patient_id, patient_name, origin_clinic, destination_facility,
	department, urgency, symptoms, diagnosis, tests_performed, medications,
	status, created_by, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, ref *Referral) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO referral (id, patient_id, patient_name, origin_clinic, destination_facility,
			department, urgency, symptoms, diagnosis, tests_performed, medications, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`,
		ref.ID, ref.PatientID, ref.PatientName, ref.OriginClinic, ref.DestinationFacility,
		ref.Department, ref.Urgency, ref.Symptoms, ref.Diagnosis, ref.TestsPerformed, ref.Medications,
		ref.Status, ref.CreatedBy,
	).Scan(&ref.CreatedAt, &ref.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert referral: %w", err)
	}
	return nil
}

func (r *repoPG) Get(ctx context.Context, id uuid.UUID) (*Referral, error) {
	ref, err := scanReferral(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+referralCols+` FROM referral WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	return ref, err
}

func (r *repoPG) List(ctx context.Context, f Filter, page pagination.Params) ([]*Referral, int, error) {
	var status *string
	if f.Status != nil {
		s := string(*f.Status)
		status = &s
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+referralCols+`, COUNT(*) OVER()
		FROM referral
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC, id
		`+page.SQL(), status)
	if err != nil {
		return nil, 0, fmt.Errorf("list referrals: %w", err)
	}
	defer rows.Close()

	out := []*Referral{}
	total := 0
	for rows.Next() {
		var ref Referral
		if err := rows.Scan(referralDest(&ref, &total)...); err != nil {
			return nil, 0, fmt.Errorf("scan referral: %w", err)
		}
		out = append(out, &ref)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// A page past the end carries no window count.
	if len(out) == 0 && page.Offset > 0 {
		if err := db.Conn(ctx, r.pool).QueryRow(ctx,
			`SELECT COUNT(*) FROM referral WHERE ($1::text IS NULL OR status = $1)`, status,
		).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count referrals: %w", err)
		}
	}
	return out, total, nil
}

// SetStatus is a single compare-and-set UPDATE on the current status, so of
// two concurrent transitions from the same status only one matches a row.
func (r *repoPG) SetStatus(ctx context.Context, id uuid.UUID, from, to Status, d Details) (*Referral, error) {
	ref, err := scanReferral(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE referral SET
			status = $3,
			diagnosis = COALESCE($4, diagnosis),
			tests_performed = COALESCE($5, tests_performed),
			medications = COALESCE($6, medications),
			updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING `+referralCols,
		id, from, to, d.Diagnosis, d.TestsPerformed, d.Medications))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errStaleStatus
	}
	return ref, err
}

func (r *repoPG) HasOpenReferrals(ctx context.Context, patientID uuid.UUID) (bool, error) {
	var open bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM referral WHERE patient_id = $1 AND status <> 'closed')`,
		patientID).Scan(&open)
	if err != nil {
		return false, fmt.Errorf("check open referrals: %w", err)
	}
	return open, nil
}

func referralDest(ref *Referral, extra ...any) []any {
	return append([]any{
		&ref.ID, &ref.PatientID, &ref.PatientName, &ref.OriginClinic, &ref.DestinationFacility,
		&ref.Department, &ref.Urgency, &ref.Symptoms, &ref.Diagnosis, &ref.TestsPerformed, &ref.Medications,
		&ref.Status, &ref.CreatedBy, &ref.CreatedAt, &ref.UpdatedAt,
	}, extra...)
}

// scanReferral returns pgx.ErrNoRows unwrapped so callers can tell an empty
// result apart.
func scanReferral(row pgx.Row) (*Referral, error) {
	var ref Referral
	if err := row.Scan(referralDest(&ref)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan referral: %w", err)
	}
	return &ref, nil
}
