package repository

import (
	"context"
	"time"

	"classhub/server/internal/model"
)

func (s *Store) CreateAssignment(ctx context.Context, assignment model.Assignment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO assignments (id, file_urls) VALUES ($1, $2)
	`, assignment.ID, assignment.FileURLs); err != nil {
		return err
	}
	for _, batchID := range assignment.BatchIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO assignment_batches (assignment_id, batch_id) VALUES ($1, $2)
		`, assignment.ID, batchID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) DeleteAssignment(ctx context.Context, assignmentID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM assignments WHERE id = $1`, assignmentID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ListAssignmentsForBatch(ctx context.Context, batchID string) ([]model.Assignment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.id, a.file_urls, a.created_at
		FROM assignments a
		JOIN assignment_batches ab ON ab.assignment_id = a.id
		WHERE ab.batch_id = $1
		ORDER BY a.created_at DESC
	`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []model.Assignment
	for rows.Next() {
		var assignment model.Assignment
		if err := rows.Scan(&assignment.ID, &assignment.FileURLs, &assignment.CreatedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, assignment)
	}
	return assignments, rows.Err()
}

// ListAssignmentsForStudentBetween returns assignments posted to any of the
// student's batches in the window, tagged with the batch name.
func (s *Store) ListAssignmentsForStudentBetween(ctx context.Context, studentID string, from, to time.Time) ([]model.Assignment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.id, a.file_urls, b.name, a.created_at
		FROM assignments a
		JOIN assignment_batches ab ON ab.assignment_id = a.id
		JOIN batches b ON b.id = ab.batch_id
		JOIN batch_students m ON m.batch_id = b.id AND m.student_id = $1
		WHERE a.created_at >= $2 AND a.created_at < $3
		ORDER BY a.created_at DESC
	`, studentID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []model.Assignment
	for rows.Next() {
		var assignment model.Assignment
		if err := rows.Scan(&assignment.ID, &assignment.FileURLs, &assignment.BatchName, &assignment.CreatedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, assignment)
	}
	return assignments, rows.Err()
}

func (s *Store) AssignmentTaughtBy(ctx context.Context, assignmentID, teacherID string) (bool, error) {
	return s.exists(ctx, `
		SELECT 1
		FROM assignment_batches ab
		JOIN batches b ON b.id = ab.batch_id
		WHERE ab.assignment_id = $1 AND b.teacher_id = $2
	`, assignmentID, teacherID)
}
