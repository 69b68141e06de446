package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/juku/core"
	"github.com/trezcool/juku/core/organization"
)

type organizationRepository struct {
	db *DB
}

var _ organization.Repository = (*organizationRepository)(nil) // interface compliance check

func NewOrganizationRepository(db *DB) *organizationRepository {
	return &organizationRepository{db: db}
}

func (repo *organizationRepository) CreateOrganization(_ context.Context, org organization.Organization, _ ...core.DBExecutor) (organization.Organization, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.db.fail("CreateOrganization"); err != nil {
		return organization.Organization{}, err
	}
	for _, o := range repo.db.organizations {
		if o.Code == org.Code {
			return organization.Organization{}, constraintError("organizations_code_key")
		}
	}
	repo.db.organizations[org.ID] = org
	return org, nil
}

func (repo *organizationRepository) GetOrganizationByID(_ context.Context, id string, _ ...core.DBExecutor) (organization.Organization, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.db.fail("GetOrganizationByID"); err != nil {
		return organization.Organization{}, err
	}
	if org, ok := repo.db.organizations[id]; ok {
		return org, nil
	}
	return organization.Organization{}, organization.ErrNotFound
}

func (repo *organizationRepository) GetOrganizationByCode(_ context.Context, code string, _ ...core.DBExecutor) (organization.Organization, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.db.fail("GetOrganizationByCode"); err != nil {
		return organization.Organization{}, err
	}
	for _, org := range repo.db.organizations {
		if org.Code == code {
			return org, nil
		}
	}
	return organization.Organization{}, organization.ErrNotFound
}

func (repo *organizationRepository) CreateLocation(_ context.Context, loc organization.Location, _ ...core.DBExecutor) (organization.Location, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.db.fail("CreateLocation"); err != nil {
		return organization.Location{}, err
	}
	if _, ok := repo.db.organizations[loc.OrganizationID]; !ok {
		return organization.Location{}, constraintError("locations_organization_id_fkey")
	}
	for _, l := range repo.db.locations {
		if l.OrganizationID == loc.OrganizationID && l.Name == loc.Name {
			return organization.Location{}, constraintError("locations_organization_id_name_key")
		}
	}
	repo.db.locations[loc.ID] = loc
	return loc, nil
}

func (repo *organizationRepository) GetLocationByID(_ context.Context, id string, _ ...core.DBExecutor) (organization.Location, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if loc, ok := repo.db.locations[id]; ok {
		return loc, nil
	}
	return organization.Location{}, organization.ErrLocationNotFound
}

func (repo *organizationRepository) GetLocationByName(_ context.Context, organizationID, name string, _ ...core.DBExecutor) (organization.Location, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, loc := range repo.db.locations {
		if loc.OrganizationID == organizationID && loc.Name == name {
			return loc, nil
		}
	}
	return organization.Location{}, organization.ErrLocationNotFound
}

func (repo *organizationRepository) CreateClassSession(_ context.Context, cs organization.ClassSession, _ ...core.DBExecutor) (organization.ClassSession, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.db.fail("CreateClassSession"); err != nil {
		return organization.ClassSession{}, err
	}
	switch {
	case cs.DayOfWeek < 0 || cs.DayOfWeek > 6:
		return organization.ClassSession{}, constraintError("class_sessions_day_of_week_check")
	case cs.StartTime >= cs.EndTime:
		return organization.ClassSession{}, constraintError("class_sessions_check")
	case cs.Capacity < 0:
		return organization.ClassSession{}, constraintError("class_sessions_capacity_check")
	}
	if _, ok := repo.db.locations[cs.LocationID]; !ok {
		return organization.ClassSession{}, constraintError("class_sessions_location_id_fkey")
	}
	cs.Location = organization.Location{}
	repo.db.classSessions[cs.ID] = cs
	return cs, nil
}

// classSession returns the class session with its location. The mutex must be held.
func (db *DB) classSession(id string) (organization.ClassSession, bool) {
	cs, ok := db.classSessions[id]
	if !ok {
		return organization.ClassSession{}, false
	}
	cs.Location = db.locations[cs.LocationID]
	return cs, true
}

func (repo *organizationRepository) QueryClassSessions(_ context.Context, organizationID string, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]organization.ClassSession, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.db.fail("QueryClassSessions"); err != nil {
		return nil, err
	}
	classes := make([]organization.ClassSession, 0)
	for id := range repo.db.classSessions {
		cs, _ := repo.db.classSession(id)
		if cs.Location.OrganizationID == organizationID {
			classes = append(classes, cs)
		}
	}
	sortClassSessions(classes, ordering)
	return classes, nil
}

func compareClassSessions(a, b organization.ClassSession, field string) int {
	switch field {
	case "day_of_week":
		return a.DayOfWeek - b.DayOfWeek
	case "start_time":
		return compareStrings(a.StartTime, b.StartTime)
	case "end_time":
		return compareStrings(a.EndTime, b.EndTime)
	case "name":
		return compareStrings(a.Name, b.Name)
	case "location":
		return compareStrings(a.Location.Name, b.Location.Name)
	}
	return 0
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func sortClassSessions(classes []organization.ClassSession, ordering []core.DBOrdering) {
	sort.SliceStable(classes, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareClassSessions(classes[i], classes[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return classes[i].ID < classes[j].ID
	})
}
