package sqlxrepos

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/audit"
)

type auditRepository struct {
	exec core.DBExecutor
}

var _ audit.Repository = (*auditRepository)(nil) // interface compliance check

func NewAuditRepository(exec core.DBExecutor) *auditRepository {
	return &auditRepository{exec: exec}
}

// auditRow flattens Record.Details to JSONB for scanning.
type auditRow struct {
	ID           string    `db:"id"`
	TenantID     string    `db:"tenant_id"`
	ActorID      string    `db:"actor_id"`
	Action       string    `db:"action"`
	ResourceType string    `db:"resource_type"`
	ResourceID   string    `db:"resource_id"`
	Details      []byte    `db:"details"`
	CreatedAt    time.Time `db:"created_at"`
}

func (row auditRow) record() (audit.Record, error) {
	rec := audit.Record{
		ID:           row.ID,
		TenantID:     row.TenantID,
		ActorID:      row.ActorID,
		Action:       row.Action,
		ResourceType: row.ResourceType,
		ResourceID:   row.ResourceID,
		CreatedAt:    row.CreatedAt,
	}
	if len(row.Details) > 0 {
		if err := json.Unmarshal(row.Details, &rec.Details); err != nil {
			return audit.Record{}, errors.Wrap(err, "decoding audit details")
		}
	}
	return rec, nil
}

func (repo auditRepository) CreateRecord(ctx context.Context, rec audit.Record, exec ...core.DBExecutor) (audit.Record, error) {
	exe := getExec(repo.exec, exec)
	rec.ID = uuid.New().String()

	details := []byte("{}")
	if rec.Details != nil {
		var err error
		if details, err = json.Marshal(rec.Details); err != nil {
			return audit.Record{}, errors.Wrap(err, "encoding audit details")
		}
	}

	_, err := exe.ExecContext(ctx, `
		INSERT INTO audit_log (id, tenant_id, actor_id, action, resource_type, resource_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.TenantID, rec.ActorID, rec.Action, rec.ResourceType, rec.ResourceID, details, rec.CreatedAt,
	)
	if err != nil {
		return audit.Record{}, errors.Wrap(err, "inserting audit record")
	}
	return rec, nil
}

func (repo auditRepository) FilterRecords(ctx context.Context, tenantID string, filter *audit.QueryFilter, exec ...core.DBExecutor) ([]audit.Record, error) {
	exe := getExec(repo.exec, exec)

	q := `SELECT * FROM audit_log WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter != nil && !filter.IsEmpty() {
		if filter.ActorID != "" {
			q += ` AND actor_id = ` + arg(filter.ActorID)
		}
		if filter.Action != "" {
			q += ` AND action = ` + arg(filter.Action)
		}
		if filter.ResourceType != "" {
			q += ` AND resource_type = ` + arg(filter.ResourceType)
		}
		if filter.ResourceID != "" {
			q += ` AND resource_id = ` + arg(filter.ResourceID)
		}
		if !filter.From.IsZero() {
			q += ` AND created_at >= ` + arg(filter.From)
		}
		if !filter.To.IsZero() {
			q += ` AND created_at <= ` + arg(filter.To)
		}
	}
	q += ` ORDER BY created_at DESC`

	var rows []auditRow
	if err := exe.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying audit records")
	}

	recs := make([]audit.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
