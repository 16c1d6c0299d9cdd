package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"classhub/server/internal/model"
)

func (s *Store) CreateBatch(ctx context.Context, batch model.Batch) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO batches (id, name, teacher_id, joining_code, standard)
		VALUES ($1, $2, $3, $4, $5)
	`, batch.ID, batch.Name, batch.TeacherID, batch.JoiningCode, batch.Standard)
	return err
}

func (s *Store) GetBatchByID(ctx context.Context, batchID string) (model.Batch, error) {
	var batch model.Batch
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, teacher_id, joining_code, standard, created_at
		FROM batches
		WHERE id = $1
	`, batchID)
	if err := row.Scan(&batch.ID, &batch.Name, &batch.TeacherID, &batch.JoiningCode, &batch.Standard, &batch.CreatedAt); err != nil {
		return model.Batch{}, err
	}

	rows, err := s.pool.Query(ctx, `SELECT student_id FROM batch_students WHERE batch_id = $1`, batchID)
	if err != nil {
		return model.Batch{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var studentID string
		if err := rows.Scan(&studentID); err != nil {
			return model.Batch{}, err
		}
		batch.StudentIDs = append(batch.StudentIDs, studentID)
	}
	return batch, rows.Err()
}

func (s *Store) ListBatches(ctx context.Context) ([]model.BatchSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT b.id, b.name, b.standard, b.joining_code, u.name,
		       (SELECT count(*) FROM batch_students bs WHERE bs.batch_id = b.id)
		FROM batches b
		JOIN users u ON u.id = b.teacher_id
		ORDER BY b.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBatchSummaries(rows)
}

func (s *Store) ListBatchesForTeacher(ctx context.Context, teacherID string) ([]model.BatchSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT b.id, b.name, b.standard, b.joining_code, u.name,
		       (SELECT count(*) FROM batch_students bs WHERE bs.batch_id = b.id)
		FROM batches b
		JOIN users u ON u.id = b.teacher_id
		WHERE b.teacher_id = $1
		ORDER BY b.created_at DESC
	`, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBatchSummaries(rows)
}

func (s *Store) ListBatchesForStudent(ctx context.Context, studentID string) ([]model.BatchSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT b.id, b.name, b.standard, '', u.name,
		       (SELECT count(*) FROM batch_students bs WHERE bs.batch_id = b.id)
		FROM batches b
		JOIN users u ON u.id = b.teacher_id
		JOIN batch_students m ON m.batch_id = b.id AND m.student_id = $1
		ORDER BY b.created_at DESC
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBatchSummaries(rows)
}

// ListOpenBatches returns batches of the student's standard they have not
// joined yet. Joining codes are not exposed here.
func (s *Store) ListOpenBatches(ctx context.Context, standard, studentID string) ([]model.BatchSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT b.id, b.name, b.standard, '', u.name,
		       (SELECT count(*) FROM batch_students bs WHERE bs.batch_id = b.id)
		FROM batches b
		JOIN users u ON u.id = b.teacher_id
		WHERE b.standard = $1
		  AND NOT EXISTS (SELECT 1 FROM batch_students m WHERE m.batch_id = b.id AND m.student_id = $2)
		ORDER BY b.created_at DESC
	`, standard, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBatchSummaries(rows)
}

func scanBatchSummaries(rows pgx.Rows) ([]model.BatchSummary, error) {
	var batches []model.BatchSummary
	for rows.Next() {
		var batch model.BatchSummary
		if err := rows.Scan(&batch.ID, &batch.Name, &batch.Standard, &batch.JoiningCode, &batch.TeacherName, &batch.StudentCount); err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

func (s *Store) TeacherHasBatchNamed(ctx context.Context, teacherID, name string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM batches WHERE teacher_id = $1 AND name = $2`, teacherID, name)
}

func (s *Store) CountBatches(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM batches`).Scan(&count)
	return count, err
}

func (s *Store) UpdateJoiningCode(ctx context.Context, batchID, code string) error {
	_, err := s.pool.Exec(ctx, `UPDATE batches SET joining_code = $1 WHERE id = $2`, code, batchID)
	return err
}

func (s *Store) AddBatchStudent(ctx context.Context, batchID, studentID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO batch_students (batch_id, student_id)
		VALUES ($1, $2)
		ON CONFLICT (batch_id, student_id) DO NOTHING
	`, batchID, studentID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) RemoveBatchStudent(ctx context.Context, batchID, studentID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM batch_students WHERE batch_id = $1 AND student_id = $2
	`, batchID, studentID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) IsBatchMember(ctx context.Context, batchID, studentID string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM batch_students WHERE batch_id = $1 AND student_id = $2`, batchID, studentID)
}

// ListEligibleStudents returns verified students of the batch's standard who
// are not members yet.
func (s *Store) ListEligibleStudents(ctx context.Context, batchID, standard string) ([]model.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, uid, standard
		FROM users
		WHERE role = 'student' AND is_verified AND standard = $1
		  AND NOT EXISTS (SELECT 1 FROM batch_students m WHERE m.batch_id = $2 AND m.student_id = users.id)
		ORDER BY created_at DESC
	`, standard, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []model.User
	for rows.Next() {
		var student model.User
		if err := rows.Scan(&student.ID, &student.Name, &student.UID, &student.Standard); err != nil {
			return nil, err
		}
		students = append(students, student)
	}
	return students, rows.Err()
}

func (s *Store) ListBatchStudents(ctx context.Context, batchID string) ([]model.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT u.id, u.name, u.email, u.standard, u.uid
		FROM users u
		JOIN batch_students m ON m.student_id = u.id
		WHERE m.batch_id = $1
		ORDER BY u.name
	`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []model.User
	for rows.Next() {
		var student model.User
		if err := rows.Scan(&student.ID, &student.Name, &student.Email, &student.Standard, &student.UID); err != nil {
			return nil, err
		}
		students = append(students, student)
	}
	return students, rows.Err()
}

// DeleteBatch removes the batch and cleans up assignments: the batch is pulled
// from each assignment, and assignments that referenced only this batch are
// deleted outright.
func (s *Store) DeleteBatch(ctx context.Context, batchID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM assignments
		WHERE id IN (
			SELECT assignment_id FROM assignment_batches WHERE batch_id = $1
		)
		AND NOT EXISTS (
			SELECT 1 FROM assignment_batches ab
			WHERE ab.assignment_id = assignments.id AND ab.batch_id <> $1
		)
	`, batchID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM batches WHERE id = $1`, batchID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
