package sqlxrepos

import (
	"context"
	"time"

	"github.com/trezcool/juku/core"
	"github.com/trezcool/juku/core/organization"
	"github.com/trezcool/juku/storage/database"
)

type organizationRepository struct {
	repository
}

var _ organization.Repository = (*organizationRepository)(nil) // interface compliance check

func NewOrganizationRepository(exec core.DBExecutor) *organizationRepository {
	return &organizationRepository{repository{exec: exec}}
}

const (
	organizationColumns = "organization_id, code, name, contact_info, created_at"
	locationColumns     = "location_id, organization_id, name, created_at"

	classSessionSelect = `
SELECT cs.class_session_id, cs.location_id, cs.name, cs.day_of_week, cs.start_time, cs.end_time, cs.capacity,
       cs.created_at, l.name AS location_name, l.organization_id
  FROM class_sessions cs
  JOIN locations l ON l.location_id = cs.location_id`
)

var classSessionOrderColumns = map[string]string{
	"day_of_week": "cs.day_of_week",
	"start_time":  "cs.start_time",
	"end_time":    "cs.end_time",
	"name":        "cs.name",
	"location":    "l.name",
}

type classSessionRow struct {
	ID             string    `db:"class_session_id"`
	LocationID     string    `db:"location_id"`
	Name           string    `db:"name"`
	DayOfWeek      int       `db:"day_of_week"`
	StartTime      string    `db:"start_time"`
	EndTime        string    `db:"end_time"`
	Capacity       int       `db:"capacity"`
	CreatedAt      time.Time `db:"created_at"`
	LocationName   string    `db:"location_name"`
	OrganizationID string    `db:"organization_id"`
}

func (row classSessionRow) unpack() organization.ClassSession {
	return organization.ClassSession{
		ID:         row.ID,
		LocationID: row.LocationID,
		Name:       row.Name,
		DayOfWeek:  row.DayOfWeek,
		StartTime:  row.StartTime,
		EndTime:    row.EndTime,
		Capacity:   row.Capacity,
		CreatedAt:  row.CreatedAt.UTC(),
		Location: organization.Location{
			ID:             row.LocationID,
			OrganizationID: row.OrganizationID,
			Name:           row.LocationName,
		},
	}
}

// trapNoRowsErr maps "no rows" to notFound and classifies other driver errors.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if database.IsNoRows(err) {
		return notFound
	}
	return database.Classify(err, msg)
}

func (repo organizationRepository) CreateOrganization(ctx context.Context, org organization.Organization, exec ...core.DBExecutor) (organization.Organization, error) {
	exe := repo.getExec(exec)
	org.CreatedAt = org.CreatedAt.UTC()
	q := exe.Rebind("INSERT INTO organizations (" + organizationColumns + ") VALUES (?, ?, ?, ?, ?)")
	if _, err := exe.ExecContext(ctx, q, org.ID, org.Code, org.Name, org.ContactInfo, org.CreatedAt); err != nil {
		return organization.Organization{}, database.Classify(err, "inserting organization")
	}
	return org, nil
}

func (repo organizationRepository) getOrganization(ctx context.Context, where string, arg interface{}, exec []core.DBExecutor) (organization.Organization, error) {
	exe := repo.getExec(exec)
	var org organization.Organization
	q := exe.Rebind("SELECT " + organizationColumns + " FROM organizations WHERE " + where + " = ?")
	if err := exe.GetContext(ctx, &org, q, arg); err != nil {
		return organization.Organization{}, trapNoRowsErr(err, organization.ErrNotFound, "getting organization")
	}
	org.CreatedAt = org.CreatedAt.UTC()
	return org, nil
}

func (repo organizationRepository) GetOrganizationByID(ctx context.Context, id string, exec ...core.DBExecutor) (organization.Organization, error) {
	return repo.getOrganization(ctx, "organization_id", id, exec)
}

func (repo organizationRepository) GetOrganizationByCode(ctx context.Context, code string, exec ...core.DBExecutor) (organization.Organization, error) {
	return repo.getOrganization(ctx, "code", code, exec)
}

func (repo organizationRepository) CreateLocation(ctx context.Context, loc organization.Location, exec ...core.DBExecutor) (organization.Location, error) {
	exe := repo.getExec(exec)
	loc.CreatedAt = loc.CreatedAt.UTC()
	q := exe.Rebind("INSERT INTO locations (" + locationColumns + ") VALUES (?, ?, ?, ?)")
	if _, err := exe.ExecContext(ctx, q, loc.ID, loc.OrganizationID, loc.Name, loc.CreatedAt); err != nil {
		return organization.Location{}, database.Classify(err, "inserting location")
	}
	return loc, nil
}

func (repo organizationRepository) GetLocationByID(ctx context.Context, id string, exec ...core.DBExecutor) (organization.Location, error) {
	exe := repo.getExec(exec)
	var loc organization.Location
	q := exe.Rebind("SELECT " + locationColumns + " FROM locations WHERE location_id = ?")
	if err := exe.GetContext(ctx, &loc, q, id); err != nil {
		return organization.Location{}, trapNoRowsErr(err, organization.ErrLocationNotFound, "getting location")
	}
	return loc, nil
}

func (repo organizationRepository) GetLocationByName(ctx context.Context, organizationID, name string, exec ...core.DBExecutor) (organization.Location, error) {
	exe := repo.getExec(exec)
	var loc organization.Location
	q := exe.Rebind("SELECT " + locationColumns + " FROM locations WHERE organization_id = ? AND name = ?")
	if err := exe.GetContext(ctx, &loc, q, organizationID, name); err != nil {
		return organization.Location{}, trapNoRowsErr(err, organization.ErrLocationNotFound, "getting location by name")
	}
	return loc, nil
}

func (repo organizationRepository) CreateClassSession(ctx context.Context, cs organization.ClassSession, exec ...core.DBExecutor) (organization.ClassSession, error) {
	exe := repo.getExec(exec)
	cs.CreatedAt = cs.CreatedAt.UTC()
	q := exe.Rebind(`
INSERT INTO class_sessions (class_session_id, location_id, name, day_of_week, start_time, end_time, capacity, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := exe.ExecContext(ctx, q, cs.ID, cs.LocationID, cs.Name, cs.DayOfWeek, cs.StartTime, cs.EndTime, cs.Capacity, cs.CreatedAt)
	if err != nil {
		return organization.ClassSession{}, database.Classify(err, "inserting class session")
	}
	return cs, nil
}

func (repo organizationRepository) QueryClassSessions(ctx context.Context, organizationID string, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]organization.ClassSession, error) {
	exe := repo.getExec(exec)
	var rows []classSessionRow
	q := exe.Rebind(classSessionSelect + " WHERE l.organization_id = ?" + orderBy(ordering, classSessionOrderColumns))
	if err := exe.SelectContext(ctx, &rows, q, organizationID); err != nil {
		return nil, database.Classify(err, "querying class sessions")
	}

	classes := make([]organization.ClassSession, 0, len(rows))
	for _, row := range rows {
		classes = append(classes, row.unpack())
	}
	return classes, nil
}
