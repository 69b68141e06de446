package organization_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/juku/core"
	"github.com/trezcool/juku/core/organization"
	inmemdb "github.com/trezcool/juku/storage/database/inmem"
	sqlxrepos "github.com/trezcool/juku/storage/database/sqlx"
	testutil "github.com/trezcool/juku/tests"
)

func TestService_ResolveByCode(t *testing.T) {
	ctx := context.Background()
	repo := inmemdb.NewOrganizationRepository(inmemdb.Open())
	svc := organization.NewService(repo, core.NewDefaultValidator())

	org := testutil.CreateOrganization(t, repo, "Shibuya-01", "Shibuya School")
	testutil.CreateOrganization(t, repo, "meguro", "Meguro School")

	got, err := svc.ResolveByCode(ctx, "Shibuya-01")
	require.NoError(t, err)
	assert.Equal(t, org, got)

	// codes are matched verbatim
	for _, code := range []string{"", "shibuya-01", "SHIBUYA-01", " Shibuya-01", "Shibuya-01 ", "Shibuya", org.ID} {
		_, err = svc.ResolveByCode(ctx, code)
		assert.True(t, core.IsNotFound(err), "code %q: got %v", code, err)
		assert.Equal(t, organization.ErrNotFound, err)
	}
}

func TestService_Resolve(t *testing.T) {
	ctx := context.Background()
	repo := inmemdb.NewOrganizationRepository(inmemdb.Open())
	svc := organization.NewService(repo, core.NewDefaultValidator())
	org := testutil.CreateOrganization(t, repo, "shibuya", "Shibuya School")

	byID, err := svc.Resolve(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, org.ID, byID.ID)

	byCode, err := svc.Resolve(ctx, "shibuya")
	require.NoError(t, err)
	assert.Equal(t, org.ID, byCode.ID)

	_, err = svc.Get(ctx, "shibuya")
	assert.True(t, core.IsNotFound(err))
	_, err = svc.Resolve(ctx, "9c4d3a3e-8d7b-4b7e-a0c6-5a9f0f1b2c3d")
	assert.True(t, core.IsNotFound(err))

	// a code shaped like an id is found when no organization has that id
	uuidCode := testutil.CreateOrganization(t, repo, "6b1e8f34-3d4f-4c44-9a53-3c3a8e0e0a11", "Ebisu School")
	got, err := svc.Resolve(ctx, "6b1e8f34-3d4f-4c44-9a53-3c3a8e0e0a11")
	require.NoError(t, err)
	assert.Equal(t, uuidCode.ID, got.ID)
}

func TestService_ListClasses(t *testing.T) {
	ctx := context.Background()
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewOrganizationRepository(db)
	svc := organization.NewService(repo, core.NewDefaultValidator())

	org := testutil.CreateOrganization(t, repo, "shibuya", "Shibuya School")
	other := testutil.CreateOrganization(t, repo, "meguro", "Meguro School")
	main := testutil.CreateLocation(t, repo, org, "Main building")
	annex := testutil.CreateLocation(t, repo, org, "Annex")
	elsewhere := testutil.CreateLocation(t, repo, other, "Meguro building")

	wed := testutil.CreateClassSession(t, repo, main, "English", 3, "17:00:00", "18:00:00")
	monLate := testutil.CreateClassSession(t, repo, annex, "Science", 1, "18:30:00", "19:30:00")
	monEarly := testutil.CreateClassSession(t, repo, main, "Math", 1, "16:00:00", "17:00:00")
	testutil.CreateClassSession(t, repo, elsewhere, "Art", 0, "10:00:00", "11:00:00")

	classes, err := svc.ListClasses(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, classes, 3)
	assert.Equal(t, []string{monEarly.ID, monLate.ID, wed.ID}, []string{classes[0].ID, classes[1].ID, classes[2].ID})
	assert.Equal(t, "Annex", classes[1].Location.Name)
	assert.Equal(t, org.ID, classes[1].Location.OrganizationID)
	assert.Equal(t, "Monday", classes[0].Weekday())

	empty, err := svc.ListClasses(ctx, testutil.CreateOrganization(t, repo, "empty", "Empty School").ID)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	unknown, err := svc.ListClasses(ctx, "not-an-id")
	require.NoError(t, err)
	assert.Empty(t, unknown)
}

func TestService_Provisioning(t *testing.T) {
	ctx := context.Background()
	db := inmemdb.Open()
	svc := organization.NewService(inmemdb.NewOrganizationRepository(db), core.NewDefaultValidator())

	org, err := svc.CreateOrganization(ctx, organization.NewOrganization{Code: " shibuya ", Name: "Shibuya School", Email: "Info@Shibuya.example"})
	require.NoError(t, err)
	assert.Equal(t, "shibuya", org.Code)
	assert.Equal(t, "info@shibuya.example", org.ContactInfo.Email)

	_, err = svc.CreateOrganization(ctx, organization.NewOrganization{Code: "shibuya", Name: "Again"})
	assert.True(t, core.IsConflict(err))

	_, err = svc.CreateOrganization(ctx, organization.NewOrganization{Code: "bad code!", Name: "Bad"})
	assert.True(t, core.IsValidationError(err))

	loc, err := svc.CreateLocation(ctx, organization.NewLocation{OrganizationID: org.ID, Name: "Main building"})
	require.NoError(t, err)
	again, err := svc.CreateLocation(ctx, organization.NewLocation{OrganizationID: org.ID, Name: " Main building "})
	require.NoError(t, err)
	assert.Equal(t, loc.ID, again.ID)
	assert.Equal(t, 1, db.Count(inmemdb.TableLocations))

	cs, err := svc.CreateClassSession(ctx, organization.NewClassSession{
		LocationID: loc.ID, Name: "Math", DayOfWeek: 2, StartTime: "9:30", EndTime: "10:45", Capacity: 8,
	})
	require.NoError(t, err)
	assert.Equal(t, "09:30:00", cs.StartTime)
	assert.Equal(t, "10:45:00", cs.EndTime)
	assert.Equal(t, "Main building", cs.Location.Name)

	invalid := []organization.NewClassSession{
		{LocationID: loc.ID, Name: "Math", DayOfWeek: 7, StartTime: "09:00", EndTime: "10:00"},
		{LocationID: loc.ID, Name: "Math", DayOfWeek: -1, StartTime: "09:00", EndTime: "10:00"},
		{LocationID: loc.ID, Name: "Math", DayOfWeek: 1, StartTime: "10:00", EndTime: "10:00"},
		{LocationID: loc.ID, Name: "Math", DayOfWeek: 1, StartTime: "11:00", EndTime: "10:00"},
		{LocationID: loc.ID, Name: "Math", DayOfWeek: 1, StartTime: "nine", EndTime: "10:00"},
		{LocationID: loc.ID, Name: "Math", DayOfWeek: 1, StartTime: "09:00", EndTime: "10:00", Capacity: -1},
		{LocationID: loc.ID, Name: "", DayOfWeek: 1, StartTime: "09:00", EndTime: "10:00"},
	}
	for _, nc := range invalid {
		_, err = svc.CreateClassSession(ctx, nc)
		assert.True(t, core.IsValidationError(err), "%+v: got %v", nc, err)
	}
	assert.Equal(t, 1, db.Count(inmemdb.TableClassSessions))
}
