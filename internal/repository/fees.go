package repository

import (
	"context"
	"time"

	"classhub/server/internal/model"
)

// InsertFeeIfAbsent creates the ledger row for (student, period) unless one
// already exists. It returns false when the row was already there, which is
// the idempotent outcome the fee generation job relies on: two concurrent runs
// race to this insert and the loser is a no-op, never a duplicate charge.
func (s *Store) InsertFeeIfAbsent(ctx context.Context, entry model.FeeEntry) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO fee_entries (id, student_id, amount, period)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (student_id, period) DO NOTHING
	`, entry.ID, entry.StudentID, entry.Amount, entry.Period)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const feeColumns = `id, student_id, amount, period, paid, mode, order_id, payment_id, paid_at, created_at`

func (s *Store) GetFeeByID(ctx context.Context, feeID string) (model.FeeEntry, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+feeColumns+` FROM fee_entries WHERE id = $1`, feeID)
	var entry model.FeeEntry
	err := row.Scan(
		&entry.ID,
		&entry.StudentID,
		&entry.Amount,
		&entry.Period,
		&entry.Paid,
		&entry.Mode,
		&entry.OrderID,
		&entry.PaymentID,
		&entry.PaidAt,
		&entry.CreatedAt,
	)
	return entry, err
}

func (s *Store) ListFeesForStudent(ctx context.Context, studentID string) ([]model.FeeEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+feeColumns+`
		FROM fee_entries
		WHERE student_id = $1
		ORDER BY created_at DESC
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.FeeEntry
	for rows.Next() {
		var entry model.FeeEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.StudentID,
			&entry.Amount,
			&entry.Period,
			&entry.Paid,
			&entry.Mode,
			&entry.OrderID,
			&entry.PaymentID,
			&entry.PaidAt,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) MarkFeePaidOnline(ctx context.Context, feeID, orderID, paymentID string, paidAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE fee_entries
		SET paid = true, mode = 'online', order_id = $1, payment_id = $2, paid_at = $3
		WHERE id = $4
	`, orderID, paymentID, paidAt, feeID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) MarkFeePaidOffline(ctx context.Context, feeID string, paidAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE fee_entries
		SET paid = true, mode = 'offline', paid_at = $1
		WHERE id = $2
	`, paidAt, feeID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
