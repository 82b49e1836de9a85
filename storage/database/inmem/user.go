package inmemdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id string, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if usr, ok := repo.db.users[id]; ok {
		return *usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetTenantUser(_ context.Context, tenantID, id string, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if usr, ok := repo.db.users[id]; ok && usr.TenantID.Valid && usr.TenantID.String == tenantID {
		return *usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) CountTenantUsers(_ context.Context, tenantID string, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var count int
	for _, usr := range repo.db.users {
		if usr.TenantID.Valid && usr.TenantID.String == tenantID {
			count++
		}
	}
	return count, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) SetReportsTo(_ context.Context, userID string, managerID null.String, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	usr, ok := repo.db.users[userID]
	if !ok {
		return user.ErrNotFound
	}
	usr.ReportsToID = managerID
	usr.UpdatedAt = time.Now().UTC()
	return nil
}

func (repo *userRepository) DeleteAssignments(_ context.Context, userID, tenantID string, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var deleted int
	for id, a := range repo.db.assignments {
		if a.UserID == userID && a.TenantID == tenantID {
			delete(repo.db.assignments, id)
			deleted++
		}
	}
	return deleted, nil
}

func (repo *userRepository) CreateAssignment(_ context.Context, a user.Assignment, _ ...core.DBExecutor) (user.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	a.ID = uuid.New().String()
	repo.db.assignments[a.ID] = &a
	return a, nil
}

func (repo *userRepository) GetAssignment(_ context.Context, userID, tenantID string, _ ...core.DBExecutor) (user.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, a := range repo.db.assignments {
		if a.UserID == userID && a.TenantID == tenantID {
			return *a, nil
		}
	}
	return user.Assignment{}, user.ErrNotFound
}
