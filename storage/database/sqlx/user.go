package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/user"
)

type userRepository struct {
	exec core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{exec: exec}
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	exe := getExec(repo.exec, exec)
	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}

	_, err := exe.ExecContext(ctx, `
		INSERT INTO app_user (id, name, email, tenant_id, reports_to_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		usr.ID, usr.Name, usr.Email, usr.TenantID, usr.ReportsToID, usr.IsActive, usr.CreatedAt, usr.UpdatedAt,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string, exec ...core.DBExecutor) (user.User, error) {
	exe := getExec(repo.exec, exec)
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrNotFound
	}

	var usr user.User
	if err := exe.GetContext(ctx, &usr, `SELECT * FROM app_user WHERE id = $1`, id); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user by ID")
	}
	return usr, nil
}

func (repo userRepository) GetTenantUser(ctx context.Context, tenantID, id string, exec ...core.DBExecutor) (user.User, error) {
	exe := getExec(repo.exec, exec)
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrNotFound
	}

	var usr user.User
	err := exe.GetContext(ctx, &usr,
		`SELECT * FROM app_user WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding tenant user")
	}
	return usr, nil
}

func (repo userRepository) CountTenantUsers(ctx context.Context, tenantID string, exec ...core.DBExecutor) (int, error) {
	exe := getExec(repo.exec, exec)

	var count int
	err := exe.GetContext(ctx, &count, `SELECT COUNT(*) FROM app_user WHERE tenant_id = $1`, tenantID)
	return count, errors.Wrap(err, "counting tenant users")
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	exe := getExec(repo.exec, exec)

	res, err := exe.ExecContext(ctx, `
		UPDATE app_user SET name = $1, email = $2, reports_to_id = $3, updated_at = $4 WHERE id = $5`,
		usr.Name, usr.Email, usr.ReportsToID, usr.UpdatedAt, usr.ID,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo userRepository) SetReportsTo(ctx context.Context, userID string, managerID null.String, exec ...core.DBExecutor) error {
	exe := getExec(repo.exec, exec)

	res, err := exe.ExecContext(ctx,
		`UPDATE app_user SET reports_to_id = $1, updated_at = now() WHERE id = $2`, managerID, userID)
	if err != nil {
		return errors.Wrap(err, "updating reports-to")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo userRepository) DeleteAssignments(ctx context.Context, userID, tenantID string, exec ...core.DBExecutor) (int, error) {
	exe := getExec(repo.exec, exec)

	res, err := exe.ExecContext(ctx,
		`DELETE FROM user_role WHERE user_id = $1 AND tenant_id = $2`, userID, tenantID)
	if err != nil {
		return 0, errors.Wrap(err, "deleting assignments")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (repo userRepository) CreateAssignment(ctx context.Context, a user.Assignment, exec ...core.DBExecutor) (user.Assignment, error) {
	exe := getExec(repo.exec, exec)
	a.ID = uuid.New().String()

	_, err := exe.ExecContext(ctx, `
		INSERT INTO user_role (id, user_id, tenant_id, role_id, assigned_by, assigned_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.UserID, a.TenantID, a.RoleID, a.AssignedBy, a.AssignedAt,
	)
	if err != nil {
		return user.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return a, nil
}

func (repo userRepository) GetAssignment(ctx context.Context, userID, tenantID string, exec ...core.DBExecutor) (user.Assignment, error) {
	exe := getExec(repo.exec, exec)

	var a user.Assignment
	err := exe.GetContext(ctx, &a,
		`SELECT * FROM user_role WHERE user_id = $1 AND tenant_id = $2`, userID, tenantID)
	if err != nil {
		return user.Assignment{}, trapNoRowsErr(err, user.ErrNotFound, "finding assignment")
	}
	return a, nil
}
