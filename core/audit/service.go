package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/darasahq/darasa/core"
)

type (
	Repository interface {
		CreateRecord(ctx context.Context, rec Record, exec ...core.DBExecutor) (Record, error)
		// FilterRecords applies AND operation on available QueryFilter fields,
		// most recent first.
		FilterRecords(ctx context.Context, tenantID string, filter *QueryFilter, exec ...core.DBExecutor) ([]Record, error)
	}

	Service struct {
		repo   Repository
		logger core.Logger
	}
)

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Log persists an audit record. A failure here must never fail the audited
// operation itself; it is reported to the logger instead.
func (svc *Service) Log(ctx context.Context, rec Record) {
	rec.CreatedAt = time.Now().UTC()
	if _, err := svc.repo.CreateRecord(ctx, rec); err != nil {
		svc.logger.Error(fmt.Sprintf("recording audit event %q: %v", rec.Action, err), err)
	}
}

func (svc *Service) Query(ctx context.Context, tenantID string, filter *QueryFilter) ([]Record, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.FilterRecords(ctx, tenantID, filter)
}
