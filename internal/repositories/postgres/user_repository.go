package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	domain "github.com/quadro-commerce/api/internal/domain"
	ppostgres "github.com/quadro-commerce/api/internal/platform/postgres"
	"github.com/quadro-commerce/api/internal/repositories"
)

type UserRepository struct {
	provider *ppostgres.Provider
}

const userColumns = `id, tenant_id, email, password_hash, name, role, is_active, last_login_at, email_verified_at, created_at, updated_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.Name, &u.Role,
		&u.IsActive, &u.LastLoginAt, &u.EmailVerifiedAt, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *UserRepository) Insert(ctx context.Context, user domain.User) (domain.User, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.User{}, ppostgres.WrapError("users.insert", err)
	}
	row := q.QueryRow(ctx, `
		INSERT INTO users (id, tenant_id, email, password_hash, name, role, is_active, last_login_at, email_verified_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+userColumns,
		user.ID, user.TenantID, user.Email, user.PasswordHash, user.Name, user.Role,
		user.IsActive, user.LastLoginAt, user.EmailVerifiedAt, user.CreatedAt, user.UpdatedAt)
	created, err := scanUser(row)
	if err != nil {
		return domain.User{}, ppostgres.WrapError("users.insert", err)
	}
	return created, nil
}

func (r *UserRepository) Update(ctx context.Context, user domain.User) (domain.User, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.User{}, ppostgres.WrapError("users.update", err)
	}
	row := q.QueryRow(ctx, `
		UPDATE users
		SET email = $3, password_hash = $4, name = $5, role = $6, is_active = $7, updated_at = $8
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+userColumns,
		user.TenantID, user.ID, user.Email, user.PasswordHash, user.Name, user.Role,
		user.IsActive, user.UpdatedAt)
	updated, err := scanUser(row)
	if err != nil {
		return domain.User{}, ppostgres.WrapError("users.update", err)
	}
	return updated, nil
}

func (r *UserRepository) SetActive(ctx context.Context, tenantID, userID string, active bool, updatedAt time.Time) (domain.User, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.User{}, ppostgres.WrapError("users.setActive", err)
	}
	row := q.QueryRow(ctx, `
		UPDATE users
		SET is_active = $3, updated_at = $4
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+userColumns,
		tenantID, userID, active, updatedAt)
	updated, err := scanUser(row)
	if err != nil {
		return domain.User{}, ppostgres.WrapError("users.setActive", err)
	}
	return updated, nil
}

func (r *UserRepository) RecordLogin(ctx context.Context, tenantID, userID string, at time.Time) error {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return ppostgres.WrapError("users.recordLogin", err)
	}
	tag, err := q.Exec(ctx, `
		UPDATE users SET last_login_at = $3 WHERE tenant_id = $1 AND id = $2`,
		tenantID, userID, at)
	if err != nil {
		return ppostgres.WrapError("users.recordLogin", err)
	}
	if tag.RowsAffected() == 0 {
		return ppostgres.NewNotFound("users.recordLogin", "user "+userID+" not found")
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, tenantID, userID string) (domain.User, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.User{}, ppostgres.WrapError("users.findByID", err)
	}
	row := q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE tenant_id = $1 AND id = $2`, tenantID, userID)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, ppostgres.WrapError("users.findByID", err)
	}
	return user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, tenantID, email string) (domain.User, error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.User{}, ppostgres.WrapError("users.findByEmail", err)
	}
	row := q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE tenant_id = $1 AND email = $2`, tenantID, email)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, ppostgres.WrapError("users.findByEmail", err)
	}
	return user, nil
}

func (r *UserRepository) List(ctx context.Context, tenantID string, filter repositories.UserListFilter) (domain.Page[domain.User], error) {
	q, err := r.provider.Querier(ctx)
	if err != nil {
		return domain.Page[domain.User]{}, ppostgres.WrapError("users.list", err)
	}

	where := `WHERE tenant_id = $1`
	args := []any{tenantID}
	if filter.Role != nil {
		args = append(args, *filter.Role)
		where += ` AND role = $` + argn(len(args))
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		where += ` AND is_active = $` + argn(len(args))
	}

	var total int
	if err := q.QueryRow(ctx, `SELECT count(*) FROM users `+where, args...).Scan(&total); err != nil {
		return domain.Page[domain.User]{}, ppostgres.WrapError("users.list", err)
	}

	pager := filter.Pagination
	args = append(args, pager.Limit, offset(pager))
	rows, err := q.Query(ctx, `SELECT `+userColumns+` FROM users `+where+
		` ORDER BY created_at DESC LIMIT $`+argn(len(args)-1)+` OFFSET $`+argn(len(args)), args...)
	if err != nil {
		return domain.Page[domain.User]{}, ppostgres.WrapError("users.list", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return domain.Page[domain.User]{}, ppostgres.WrapError("users.list", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return domain.Page[domain.User]{}, ppostgres.WrapError("users.list", err)
	}
	return domain.Page[domain.User]{Items: users, Meta: domain.NewPageMeta(pager.Page, pager.Limit, total)}, nil
}
