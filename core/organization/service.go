package organization

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/juku/core"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("organization not found")
	ErrLocationNotFound = core.NewNotFoundError("location not found")
	ErrCodeExists       = core.NewConflictError("an organization with this code already exists")
)

type (
	Repository interface {
		CreateOrganization(ctx context.Context, org Organization, exec ...core.DBExecutor) (Organization, error)
		GetOrganizationByID(ctx context.Context, id string, exec ...core.DBExecutor) (Organization, error)
		GetOrganizationByCode(ctx context.Context, code string, exec ...core.DBExecutor) (Organization, error)
		CreateLocation(ctx context.Context, loc Location, exec ...core.DBExecutor) (Location, error)
		GetLocationByID(ctx context.Context, id string, exec ...core.DBExecutor) (Location, error)
		GetLocationByName(ctx context.Context, organizationID, name string, exec ...core.DBExecutor) (Location, error)
		CreateClassSession(ctx context.Context, cs ClassSession, exec ...core.DBExecutor) (ClassSession, error)
		// QueryClassSessions returns the class sessions of every location of the organization, with their location.
		QueryClassSessions(ctx context.Context, organizationID string, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]ClassSession, error)
	}

	Service struct {
		repo     Repository
		validate *core.Validator
	}
)

func NewService(repo Repository, validate *core.Validator) *Service {
	return &Service{repo: repo, validate: validate}
}

// ResolveByCode matches the code verbatim, as taken from the entry link.
func (svc *Service) ResolveByCode(ctx context.Context, code string) (Organization, error) {
	if code == "" {
		return Organization{}, ErrNotFound
	}
	return svc.repo.GetOrganizationByCode(ctx, code)
}

func (svc *Service) Get(ctx context.Context, id string) (Organization, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Organization{}, ErrNotFound
	}
	return svc.repo.GetOrganizationByID(ctx, id)
}

// Resolve finds the organization by id when ref is a UUID, by code otherwise.
// A UUID matching no id is still tried as a code, since codes may look like UUIDs.
func (svc *Service) Resolve(ctx context.Context, ref string) (Organization, error) {
	if _, err := uuid.Parse(ref); err == nil {
		org, err := svc.repo.GetOrganizationByID(ctx, ref)
		if !core.IsNotFound(err) {
			return org, err
		}
	}
	return svc.ResolveByCode(ctx, ref)
}

// ListClasses returns all the class sessions of the organization, ordered by day of week then start time.
func (svc *Service) ListClasses(ctx context.Context, organizationID string) ([]ClassSession, error) {
	if _, err := uuid.Parse(organizationID); err != nil {
		return []ClassSession{}, nil
	}
	classes, err := svc.repo.QueryClassSessions(ctx, organizationID, ClassOrdering)
	if err != nil {
		return nil, err
	}
	if classes == nil {
		classes = []ClassSession{}
	}
	return classes, nil
}

func (svc *Service) CreateOrganization(ctx context.Context, no NewOrganization) (Organization, error) {
	no.Clean()
	if err := svc.validate.Validate(no); err != nil {
		return Organization{}, err
	}

	if _, err := svc.repo.GetOrganizationByCode(ctx, no.Code); err == nil {
		return Organization{}, ErrCodeExists
	} else if !core.IsNotFound(err) {
		return Organization{}, err
	}

	org, err := svc.repo.CreateOrganization(ctx, Organization{
		ID:          uuid.NewString(),
		Code:        no.Code,
		Name:        no.Name,
		ContactInfo: ContactInfo{Phone: no.Phone, Email: no.Email},
		CreatedAt:   time.Now().UTC(),
	})
	if core.IsConstraintError(err) { // lost a race on the code
		return Organization{}, ErrCodeExists
	}
	return org, err
}

// FindLocation returns the location of the organization with the given name.
func (svc *Service) FindLocation(ctx context.Context, organizationID, name string) (Location, error) {
	return svc.repo.GetLocationByName(ctx, organizationID, core.CleanString(name))
}

// CreateLocation returns the existing location when the organization already has one with the same name.
func (svc *Service) CreateLocation(ctx context.Context, nl NewLocation) (Location, error) {
	nl.Name = core.CleanString(nl.Name)
	if err := svc.validate.Validate(nl); err != nil {
		return Location{}, err
	}
	if _, err := svc.repo.GetOrganizationByID(ctx, nl.OrganizationID); err != nil {
		return Location{}, err
	}

	loc, err := svc.repo.GetLocationByName(ctx, nl.OrganizationID, nl.Name)
	if err == nil {
		return loc, nil
	}
	if !core.IsNotFound(err) {
		return Location{}, err
	}

	return svc.repo.CreateLocation(ctx, Location{
		ID:             uuid.NewString(),
		OrganizationID: nl.OrganizationID,
		Name:           nl.Name,
		CreatedAt:      time.Now().UTC(),
	})
}

func (svc *Service) CreateClassSession(ctx context.Context, nc NewClassSession) (ClassSession, error) {
	if err := nc.Clean(); err != nil {
		return ClassSession{}, err
	}
	if err := svc.validate.Validate(nc); err != nil {
		return ClassSession{}, err
	}

	loc, err := svc.repo.GetLocationByID(ctx, nc.LocationID)
	if err != nil {
		return ClassSession{}, err
	}

	cs, err := svc.repo.CreateClassSession(ctx, ClassSession{
		ID:         uuid.NewString(),
		LocationID: loc.ID,
		Name:       nc.Name,
		DayOfWeek:  nc.DayOfWeek,
		StartTime:  nc.StartTime,
		EndTime:    nc.EndTime,
		Capacity:   nc.Capacity,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return ClassSession{}, errors.Wrap(err, "creating class session")
	}
	cs.Location = loc
	return cs, nil
}
