package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/arcadian-io/authd/internal/auth"
)

var _ auth.RoleStore = (*roleStore)(nil)

type roleStore struct{ db *sql.DB }

const roleColumns = `id, name, description, permissions, created_at, updated_at`

func (s *roleStore) Create(ctx context.Context, r *auth.Role) error {
	perms, err := encodePermissions(r.Permissions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into roles (id, name, description, permissions)
		values ($1, $2, $3, $4)
	`, r.ID, r.Name, r.Description, perms)
	return mapWriteError(err)
}

func (s *roleStore) FindByID(ctx context.Context, id string) (*auth.Role, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`select %s from roles where id = $1`, roleColumns), id)
	return scanRole(row)
}

func (s *roleStore) FindByName(ctx context.Context, name string) (*auth.Role, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`select %s from roles where name = $1`, roleColumns), name)
	return scanRole(row)
}

func (s *roleStore) List(ctx context.Context) ([]*auth.Role, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`select %s from roles order by created_at asc`, roleColumns))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*auth.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (s *roleStore) Update(ctx context.Context, r *auth.Role) error {
	perms, err := encodePermissions(r.Permissions)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update roles
		set name = $2, description = $3, permissions = $4, updated_at = now()
		where id = $1
	`, r.ID, r.Name, r.Description, perms)
	if err != nil {
		return mapWriteError(err)
	}
	return requireRow(res)
}

func (s *roleStore) Remove(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from roles where id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Ensure inserts absent roles without touching existing ones; conflict on the
// unique name means the role is already present and is left as is.
func (s *roleStore) Ensure(ctx context.Context, roles []auth.Role) error {
	for _, r := range roles {
		perms, err := encodePermissions(r.Permissions)
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, `
			insert into roles (id, name, description, permissions)
			values ($1, $2, $3, $4)
			on conflict (name) do nothing
		`, r.ID, r.Name, r.Description, perms); err != nil {
			return err
		}
	}
	return nil
}

func encodePermissions(perms []string) ([]byte, error) {
	if perms == nil {
		perms = []string{}
	}
	return json.Marshal(perms)
}
