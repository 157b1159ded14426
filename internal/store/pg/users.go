package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/arcadian-io/authd/internal/auth"
)

var _ auth.UserStore = (*userStore)(nil)

type userStore struct{ db *sql.DB }

const userColumns = `id, email, password_hash, first_name, last_name, status, current_refresh_token, created_at, updated_at`

func (s *userStore) Create(ctx context.Context, u *auth.User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		insert into users (id, email, password_hash, first_name, last_name, status)
		values ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Status)
	if err != nil {
		return mapWriteError(err)
	}
	for _, role := range u.Roles {
		if _, err := tx.ExecContext(ctx, `
			insert into user_roles (user_id, role_id) values ($1, $2)
			on conflict do nothing
		`, u.ID, role.ID); err != nil {
			return mapWriteError(err)
		}
	}
	return tx.Commit()
}

func (s *userStore) FindByID(ctx context.Context, id string) (*auth.User, error) {
	return s.findOne(ctx, `where id = $1`, id)
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.findOne(ctx, `where email = $1`, email)
}

func (s *userStore) findOne(ctx context.Context, where string, arg any) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`select %s from users %s`, userColumns, where), arg)
	user, err := scanUser(row)
	if err != nil {
		return nil, err
	}
	roles, err := s.rolesFor(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Roles = roles
	return user, nil
}

func (s *userStore) List(ctx context.Context) ([]*auth.User, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`select %s from users order by created_at asc`, userColumns))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, u := range users {
		roles, err := s.rolesFor(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		u.Roles = roles
	}
	return users, nil
}

func (s *userStore) Update(ctx context.Context, u *auth.User) error {
	res, err := s.db.ExecContext(ctx, `
		update users
		set email = $2, password_hash = $3, first_name = $4, last_name = $5, updated_at = now()
		where id = $1
	`, u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName)
	if err != nil {
		return mapWriteError(err)
	}
	return requireRow(res)
}

func (s *userStore) SetRoles(ctx context.Context, userID string, roleIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from user_roles where user_id = $1`, userID); err != nil {
		return err
	}
	for _, roleID := range roleIDs {
		if _, err := tx.ExecContext(ctx, `
			insert into user_roles (user_id, role_id) values ($1, $2)
		`, userID, roleID); err != nil {
			return mapWriteError(err)
		}
	}
	if _, err := tx.ExecContext(ctx, `update users set updated_at = now() where id = $1`, userID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *userStore) SetStatus(ctx context.Context, userID, status string) error {
	res, err := s.db.ExecContext(ctx, `
		update users set status = $2, updated_at = now() where id = $1
	`, userID, status)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *userStore) Remove(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `delete from users where id = $1`, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *userStore) SetRefreshToken(ctx context.Context, userID string, token *string) error {
	res, err := s.db.ExecContext(ctx, `
		update users set current_refresh_token = $2, updated_at = now() where id = $1
	`, userID, token)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// RotateRefreshToken performs the single-statement compare-and-swap that
// closes the concurrent-refresh race: the update matches on the expected
// prior token, so of two rotations racing on the same value only one can
// observe a matching row.
func (s *userStore) RotateRefreshToken(ctx context.Context, userID, expected, next string) error {
	res, err := s.db.ExecContext(ctx, `
		update users
		set current_refresh_token = $3, updated_at = now()
		where id = $1 and current_refresh_token = $2
	`, userID, expected, next)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return auth.ErrUnauthorized
	}
	return nil
}

func (s *userStore) rolesFor(ctx context.Context, userID string) ([]auth.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.name, r.description, r.permissions, r.created_at, r.updated_at
		from roles r
		join user_roles ur on ur.role_id = r.id
		where ur.user_id = $1
		order by r.created_at asc
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []auth.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	return roles, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*auth.User, error) {
	var (
		u       auth.User
		refresh sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Status, &refresh, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if refresh.Valid {
		u.RefreshToken = &refresh.String
	}
	return &u, nil
}

func scanRole(row rowScanner) (*auth.Role, error) {
	var (
		r        auth.Role
		rawPerms []byte
	)
	err := row.Scan(&r.ID, &r.Name, &r.Description, &rawPerms, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(rawPerms) > 0 {
		if err := json.Unmarshal(rawPerms, &r.Permissions); err != nil {
			return nil, fmt.Errorf("decode permissions: %w", err)
		}
	}
	return &r, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}
