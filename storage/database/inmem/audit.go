package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/audit"
)

type auditRepository struct {
	db *DB
}

var _ audit.Repository = (*auditRepository)(nil)

func NewAuditRepository(db *DB) *auditRepository {
	return &auditRepository{db: db}
}

func (repo *auditRepository) CreateRecord(_ context.Context, rec audit.Record, _ ...core.DBExecutor) (audit.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	rec.ID = uuid.New().String()
	repo.db.audits = append(repo.db.audits, &rec)
	return rec, nil
}

func (repo *auditRepository) FilterRecords(_ context.Context, tenantID string, filter *audit.QueryFilter, _ ...core.DBExecutor) ([]audit.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var recs []audit.Record
	for _, rec := range repo.db.audits {
		if rec.TenantID != tenantID {
			continue
		}
		if filter != nil && !filter.IsEmpty() {
			if filter.ActorID != "" && rec.ActorID != filter.ActorID {
				continue
			}
			if filter.Action != "" && rec.Action != filter.Action {
				continue
			}
			if filter.ResourceType != "" && rec.ResourceType != filter.ResourceType {
				continue
			}
			if filter.ResourceID != "" && rec.ResourceID != filter.ResourceID {
				continue
			}
			if !filter.From.IsZero() && rec.CreatedAt.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && rec.CreatedAt.After(filter.To) {
				continue
			}
		}
		recs = append(recs, *rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].CreatedAt.After(recs[j].CreatedAt) })
	return recs, nil
}
