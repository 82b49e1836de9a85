package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/audit"
	"github.com/darasahq/darasa/core/role"
)

var (
	// errors
	ErrNotFound           = errors.New("user not found")
	ErrRoleNotFound       = errors.New("role not found or inactive")
	ErrSelfReporting      = errors.New("a user cannot report to themselves")
	ErrCrossTenantManager = errors.New("manager must belong to the same tenant")
	ErrCyclicReporting    = errors.New("this change would make the reporting chain circular")
)

type (
	Repository interface {
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUserByID(ctx context.Context, id string, exec ...core.DBExecutor) (User, error)
		// GetTenantUser resolves a user scoped to a tenant; a user of another
		// tenant is reported as not found.
		GetTenantUser(ctx context.Context, tenantID, id string, exec ...core.DBExecutor) (User, error)
		CountTenantUsers(ctx context.Context, tenantID string, exec ...core.DBExecutor) (int, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		SetReportsTo(ctx context.Context, userID string, managerID null.String, exec ...core.DBExecutor) error
		DeleteAssignments(ctx context.Context, userID, tenantID string, exec ...core.DBExecutor) (int, error)
		CreateAssignment(ctx context.Context, a Assignment, exec ...core.DBExecutor) (Assignment, error)
		GetAssignment(ctx context.Context, userID, tenantID string, exec ...core.DBExecutor) (Assignment, error)
	}

	Service struct {
		txr      core.Transactor
		repo     Repository
		roles    role.Repository
		auditSvc *audit.Service
		mailSvc  core.EmailService
		conf     *core.Config
	}
)

func NewService(txr core.Transactor, repo Repository, roles role.Repository, auditSvc *audit.Service, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		txr:      txr,
		repo:     repo,
		roles:    roles,
		auditSvc: auditSvc,
		mailSvc:  mailSvc,
		conf:     conf,
	}
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetTenantUser(ctx context.Context, tenantID, id string) (User, error) {
	return svc.repo.GetTenantUser(ctx, tenantID, id)
}

// AssignRole gives the user the role, replacing any existing assignment.
// The delete and insert run in one transaction so the user never holds two
// live roles, and never none beyond the transaction boundary.
func (svc *Service) AssignRole(ctx context.Context, tenantID, userID, roleID, assignedBy string) (Assignment, error) {
	usr, err := svc.repo.GetTenantUser(ctx, tenantID, userID)
	if err != nil {
		return Assignment{}, errors.Wrap(err, "finding user")
	}

	r, err := svc.roles.GetRoleByID(ctx, tenantID, roleID)
	if err != nil || !r.IsActive {
		if err != nil && errors.Cause(err) != role.ErrNotFound {
			return Assignment{}, errors.Wrap(err, "finding role")
		}
		return Assignment{}, core.NewValidationError(ErrRoleNotFound, core.FieldError{Field: "role_id", Error: ErrRoleNotFound.Error()})
	}

	var assigned Assignment
	err = svc.txr.RunInTx(ctx, func(tx core.DBExecutor) error {
		if _, err := svc.repo.DeleteAssignments(ctx, usr.ID, tenantID, tx); err != nil {
			return errors.Wrap(err, "deleting previous assignments")
		}
		assigned, err = svc.repo.CreateAssignment(ctx, Assignment{
			UserID:     usr.ID,
			TenantID:   tenantID,
			RoleID:     r.ID,
			AssignedBy: assignedBy,
			AssignedAt: time.Now().UTC(),
		}, tx)
		return errors.Wrap(err, "creating assignment")
	})
	if err != nil {
		return Assignment{}, err
	}

	svc.auditSvc.Log(ctx, audit.Record{
		TenantID:     tenantID,
		ActorID:      assignedBy,
		Action:       audit.ActionRoleAssign,
		ResourceType: audit.ResourceUser,
		ResourceID:   usr.ID,
		Details: map[string]interface{}{
			"role_id":          r.ID,
			"role_alias":       r.Alias,
			"permission_count": len(r.PermissionIDs),
		},
	})
	svc.notify(usr, "Your role has changed",
		fmt.Sprintf("Hello %s,\n\nYour role is now %q.", usr.Name, r.Alias))

	return assigned, nil
}

// AssignDefaultRole gives a new user the tenant's default role: the active
// counted role at the greatest slot position, the least privileged by
// template-set convention.
func (svc *Service) AssignDefaultRole(ctx context.Context, tenantID, userID, assignedBy string) (Assignment, error) {
	roles, err := svc.roles.QueryRoles(ctx, tenantID)
	if err != nil {
		return Assignment{}, errors.Wrap(err, "querying roles")
	}
	var def *role.Role
	for i := range roles {
		r := roles[i]
		if !r.IsActive || r.Uncounted {
			continue
		}
		if def == nil || r.SlotPosition > def.SlotPosition {
			def = &roles[i]
		}
	}
	if def == nil {
		return Assignment{}, core.NewValidationError(
			errors.New("tenant has no assignable roles"),
			core.FieldError{Field: "tenant", Error: "initialize the tenant's roles before adding users"},
		)
	}
	return svc.AssignRole(ctx, tenantID, userID, def.ID, assignedBy)
}

// SetReportsTo changes the user's manager after validating, in order:
// no self-reporting, manager in the same tenant, no cycle in the chain.
// All checks run before any write; failures surface as validation errors.
func (svc *Service) SetReportsTo(ctx context.Context, tenantID, userID string, managerID null.String) (User, error) {
	usr, err := svc.repo.GetTenantUser(ctx, tenantID, userID)
	if err != nil {
		return User{}, errors.Wrap(err, "finding user")
	}

	if managerID.Valid {
		if managerID.String == usr.ID {
			return User{}, core.NewValidationError(ErrSelfReporting, core.FieldError{Field: "reports_to_id", Error: ErrSelfReporting.Error()})
		}
		mgr, err := svc.repo.GetTenantUser(ctx, tenantID, managerID.String)
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				return User{}, core.NewValidationError(ErrCrossTenantManager, core.FieldError{Field: "reports_to_id", Error: ErrCrossTenantManager.Error()})
			}
			return User{}, errors.Wrap(err, "finding manager")
		}
		if err = svc.checkReportingChain(ctx, tenantID, usr.ID, mgr); err != nil {
			return User{}, err
		}
	}

	if usr.ReportsToID == managerID {
		return usr, nil
	}
	prev := usr.ReportsToID

	if err = svc.repo.SetReportsTo(ctx, usr.ID, managerID); err != nil {
		return User{}, errors.Wrap(err, "updating reports-to")
	}
	usr.ReportsToID = managerID
	usr.UpdatedAt = time.Now().UTC()

	svc.auditSvc.Log(ctx, audit.Record{
		TenantID:     tenantID,
		ActorID:      usr.ID,
		Action:       audit.ActionReportsToChange,
		ResourceType: audit.ResourceUser,
		ResourceID:   usr.ID,
		Details: map[string]interface{}{
			"previous_reports_to_id": prev.Ptr(),
			"new_reports_to_id":      managerID.Ptr(),
		},
	})
	return usr, nil
}

// checkReportingChain walks upward from the candidate manager and fails if it
// reaches the user. The walk is bounded by the tenant's user count (capped by
// config) so corrupted data cannot loop it forever.
func (svc *Service) checkReportingChain(ctx context.Context, tenantID, userID string, mgr User) error {
	maxDepth, err := svc.repo.CountTenantUsers(ctx, tenantID)
	if err != nil {
		return errors.Wrap(err, "counting tenant users")
	}
	if maxDepth > svc.conf.MaxReportsToDepth {
		maxDepth = svc.conf.MaxReportsToDepth
	}

	cur := mgr
	for depth := 0; ; depth++ {
		if cur.ID == userID {
			return core.NewValidationError(ErrCyclicReporting, core.FieldError{Field: "reports_to_id", Error: ErrCyclicReporting.Error()})
		}
		if !cur.ReportsToID.Valid {
			return nil
		}
		if depth >= maxDepth {
			// the chain was longer than the tenant's population: pre-existing corruption
			return core.NewShutdownError(fmt.Sprintf("reporting chain exceeds %d hops for tenant %s", maxDepth, tenantID))
		}
		if cur, err = svc.repo.GetUserByID(ctx, cur.ReportsToID.String); err != nil {
			return errors.Wrap(err, "walking reporting chain")
		}
	}
}

// Update applies profile changes; a reports-to change goes through the full
// chain validation. Role changes are NOT handled here: they require the
// dedicated assign capability and go through AssignRole.
func (svc *Service) Update(ctx context.Context, tenantID, id string, uu UpdateUser) (User, error) {
	usr, err := svc.repo.GetTenantUser(ctx, tenantID, id)
	if err != nil {
		return User{}, errors.Wrap(err, "finding user")
	}

	if mgr, set := uu.NewManager(); set {
		if usr, err = svc.SetReportsTo(ctx, tenantID, id, mgr); err != nil {
			return User{}, err
		}
	}

	usr.Name = uu.Name
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) GetAssignment(ctx context.Context, tenantID, userID string) (Assignment, error) {
	return svc.repo.GetAssignment(ctx, userID, tenantID)
}

func (svc *Service) notify(usr User, subject, body string) {
	if usr.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:          []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:     subject,
		TextContent: body,
	})
}
