package journal

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pmorrisey/njord/internal/domain"
)

// PostgresJournal stores settlement entries in the settlement_journal
// table.
type PostgresJournal struct {
	pool *pgxpool.Pool
}

var _ Journal = (*PostgresJournal)(nil)

func NewPostgresJournal(pool *pgxpool.Pool) *PostgresJournal {
	return &PostgresJournal{pool: pool}
}

func (j *PostgresJournal) Record(ctx context.Context, entry Entry) error {
	const op = "journal.record"

	if entry.AuthorizationID == "" {
		return domain.Errorf(domain.EINVALID, op, "journal entry requires an authorization ID")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := j.pool.Exec(ctx, `
		INSERT INTO settlement_journal
			(authorization_id, state, failure_reason, order_id, order_number, amount_minor, currency, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.AuthorizationID,
		entry.State,
		nullIfEmpty(entry.FailureReason),
		nullIfZero(entry.OrderID),
		nullIfEmpty(entry.OrderNumber),
		entry.AmountMinor,
		entry.Currency,
		nullIfEmpty(entry.Detail),
		entry.CreatedAt,
	)
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, op, "failed to record settlement entry")
	}
	return nil
}

func (j *PostgresJournal) ListFailures(ctx context.Context, limit int) ([]Entry, error) {
	const op = "journal.list_failures"

	if limit <= 0 {
		limit = 50
	}

	rows, err := j.pool.Query(ctx, `
		SELECT id, authorization_id, state, COALESCE(failure_reason, ''),
		       COALESCE(order_id, 0), COALESCE(order_number, ''),
		       amount_minor, currency, COALESCE(detail, ''), created_at
		FROM settlement_journal
		WHERE failure_reason IS NOT NULL
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to query settlement failures")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID, &e.AuthorizationID, &e.State, &e.FailureReason,
			&e.OrderID, &e.OrderNumber, &e.AmountMinor, &e.Currency,
			&e.Detail, &e.CreatedAt,
		); err != nil {
			return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to scan settlement entry")
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to read settlement failures")
	}
	return entries, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIfZero(n int64) any {
	if n == 0 {
		return nil
	}
	return n
}
