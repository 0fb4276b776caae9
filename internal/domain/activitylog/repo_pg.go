package activitylog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/itsaddyon/MediBridge/internal/platform/db"
	"github.com/itsaddyon/MediBridge/pkg/pagination"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const entryCols = `id, kind, action, user_id, user_name, details, severity,
	COALESCE(ip_address, ''), COALESCE(request_id, ''), occurred_at`

// filterClause binds kind, search and since as $1..$3.
const filterClause = `
	WHERE ($1::text IS NULL OR kind = $1)
	  AND ($2::text IS NULL OR action ILIKE $2 OR user_name ILIKE $2 OR details ILIKE $2)
	  AND ($3::timestamptz IS NULL OR occurred_at >= $3)`

func (r *repoPG) Create(ctx context.Context, e *Entry) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO activity_log (id, kind, action, user_id, user_name, details, severity,
			ip_address, request_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10)`,
		e.ID, e.Kind, e.Action, e.UserID, e.User, e.Details, e.Severity,
		e.IPAddress, e.RequestID, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func filterArgs(f Filter) []any {
	var kind, search *string
	var since *time.Time
	if f.Kind != "" {
		k := string(f.Kind)
		kind = &k
	}
	if f.Search != "" {
		s := "%" + escapeLike(f.Search) + "%"
		search = &s
	}
	if !f.Since.IsZero() {
		since = &f.Since
	}
	return []any{kind, search, since}
}

func (r *repoPG) List(ctx context.Context, f Filter, page pagination.Params) ([]*Entry, int, error) {
	args := filterArgs(f)
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM activity_log`+filterClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count activity: %w", err)
	}

	rows, err := conn.Query(ctx, `SELECT `+entryCols+` FROM activity_log`+filterClause+`
		ORDER BY occurred_at DESC, id
		`+page.SQL(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	out := []*Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Kind, &e.Action, &e.UserID, &e.User, &e.Details, &e.Severity,
			&e.IPAddress, &e.RequestID, &e.OccurredAt); err != nil {
			return nil, 0, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, &e)
	}
	return out, total, rows.Err()
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
