package repository

import (
	"context"
	"time"

	"classhub/server/internal/model"
)

func (s *Store) CreateUser(ctx context.Context, user model.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, standard, uid, is_verified, transport_enabled, pickup_point)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, user.ID, user.Name, user.Email, user.PasswordHash, user.Role, user.Standard, user.UID, user.IsVerified, user.TransportEnabled, user.PickupPoint)
	return err
}

const userColumns = `id, name, email, password_hash, role, standard, uid, is_verified, transport_enabled, pickup_point, created_at, updated_at`

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	return scanUser(row)
}

func (s *Store) GetStudentByUID(ctx context.Context, uid string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE uid = $1 AND role = 'student'`, uid)
	return scanUser(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Standard,
		&user.UID,
		&user.IsVerified,
		&user.TransportEnabled,
		&user.PickupPoint,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

// ListUsers returns every account, unverified first, for the admin console.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, role, standard, uid, is_verified, created_at
		FROM users
		ORDER BY is_verified ASC, created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var user model.User
		if err := rows.Scan(&user.ID, &user.Name, &user.Role, &user.Standard, &user.UID, &user.IsVerified, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) CountUsers(ctx context.Context) (model.UserCounts, error) {
	var counts model.UserCounts
	err := s.pool.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE role = 'teacher'),
		       count(*) FILTER (WHERE role = 'student'),
		       count(*) FILTER (WHERE is_verified)
		FROM users
	`).Scan(&counts.Total, &counts.Teachers, &counts.Students, &counts.Verified)
	return counts, err
}

func (s *Store) ListVerifiedTeachers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, email, uid
		FROM users
		WHERE role = 'teacher' AND is_verified
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teachers []model.User
	for rows.Next() {
		var teacher model.User
		if err := rows.Scan(&teacher.ID, &teacher.Name, &teacher.Email, &teacher.UID); err != nil {
			return nil, err
		}
		teachers = append(teachers, teacher)
	}
	return teachers, rows.Err()
}

func (s *Store) VerifyUser(ctx context.Context, userID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET is_verified = true, updated_at = now() WHERE id = $1
	`, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2
	`, passwordHash, userID)
	return err
}

// DeleteUser removes the account; fee entries and batch memberships go with it
// through the ON DELETE CASCADE references.
func (s *Store) DeleteUser(ctx context.Context, userID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListBillingStudents is the roster read for the fee generation job.
func (s *Store) ListBillingStudents(ctx context.Context) ([]model.BillingStudent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, standard, transport_enabled, pickup_point
		FROM users
		WHERE role = 'student'
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []model.BillingStudent
	for rows.Next() {
		var student model.BillingStudent
		if err := rows.Scan(&student.ID, &student.Standard, &student.TransportEnabled, &student.PickupPoint); err != nil {
			return nil, err
		}
		students = append(students, student)
	}
	return students, rows.Err()
}

// DeleteUnverifiedBefore removes accounts that were never verified and are
// older than the cutoff. Dependent rows cascade.
func (s *Store) DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM users WHERE is_verified = false AND created_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
