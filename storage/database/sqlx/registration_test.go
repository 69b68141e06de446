package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/juku/core"
	"github.com/trezcool/juku/core/registration"
	sqlxrepos "github.com/trezcool/juku/storage/database/sqlx"
	testutil "github.com/trezcool/juku/tests"
)

func newStudent(name string, createdAt time.Time) registration.Student {
	return registration.Student{
		ID:             uuid.NewString(),
		FamilyName:     "Yamada",
		GivenName:      name,
		FamilyNameKana: "やまだ",
		GivenNameKana:  "はなこ",
		BirthDate:      null.TimeFrom(time.Date(2015, 4, 1, 0, 0, 0, 0, time.UTC)),
		Gender:         null.StringFrom("female"),
		CreatedAt:      createdAt,
	}
}

func TestRegistrationRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.PrepareDB(t)
	orgRepo := sqlxrepos.NewOrganizationRepository(db)
	repo := sqlxrepos.NewRegistrationRepository(db)

	org := testutil.CreateOrganization(t, orgRepo, "shibuya", "Shibuya School")
	loc := testutil.CreateLocation(t, orgRepo, org, "Main building")
	wed := testutil.CreateClassSession(t, orgRepo, loc, "English", 3, "17:00:00", "18:00:00")
	mon := testutil.CreateClassSession(t, orgRepo, loc, "Math", 1, "16:00:00", "17:00:00")

	// guardians
	g := testutil.CreateGuardian(t, repo, org, "U1", "Yamada Hanako")
	got, err := repo.GetGuardianByExternalID(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, g.ID, got.ID)
	assert.Equal(t, org.ID, got.OrganizationID)

	_, err = repo.GetGuardianByExternalID(ctx, "U404")
	assert.Equal(t, registration.ErrGuardianNotFound, err)

	dup := g
	dup.ID = uuid.NewString()
	_, err = repo.CreateGuardian(ctx, dup)
	assert.True(t, core.IsConstraintError(err), "external user ids are unique: %v", err)

	orphan := g
	orphan.ID, orphan.ExternalUserID, orphan.OrganizationID = uuid.NewString(), "U2", uuid.NewString()
	_, err = repo.CreateGuardian(ctx, orphan)
	assert.True(t, core.IsConstraintError(err), "organization must exist: %v", err)

	// students, relations & enrollments
	now := time.Now().UTC().Truncate(time.Second)
	first := newStudent("Hanako", now)
	second := newStudent("Taro", now.Add(time.Minute))
	second.BirthDate = null.Time{}
	for _, std := range []registration.Student{second, first} {
		require.NoError(t, repo.CreateStudent(ctx, std))
		require.NoError(t, repo.CreateRelation(ctx, registration.Relation{
			GuardianID: g.ID, StudentID: std.ID, RelationType: registration.DefaultRelationType, CreatedAt: now,
		}))
	}
	for _, csID := range []string{wed.ID, mon.ID} {
		require.NoError(t, repo.CreateEnrollment(ctx, registration.Enrollment{
			ID: uuid.NewString(), StudentID: first.ID, ClassSessionID: csID, CreatedAt: now,
		}))
	}

	err = repo.CreateEnrollment(ctx, registration.Enrollment{ID: uuid.NewString(), StudentID: first.ID, ClassSessionID: mon.ID, CreatedAt: now})
	assert.True(t, core.IsConstraintError(err), "a class is enrolled once: %v", err)
	err = repo.CreateEnrollment(ctx, registration.Enrollment{ID: uuid.NewString(), StudentID: first.ID, ClassSessionID: uuid.NewString(), CreatedAt: now})
	assert.True(t, core.IsConstraintError(err), "class must exist: %v", err)
	err = repo.CreateRelation(ctx, registration.Relation{GuardianID: g.ID, StudentID: first.ID, RelationType: "guardian", CreatedAt: now})
	assert.True(t, core.IsConstraintError(err), "relations are unique: %v", err)

	students, err := repo.QueryStudentsByGuardian(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, first.ID, students[0].ID)
	assert.Equal(t, second.ID, students[1].ID)
	assert.True(t, students[0].BirthDate.Valid)
	assert.False(t, students[1].BirthDate.Valid)
	assert.Equal(t, "female", students[0].Gender.String)

	require.Len(t, students[0].Enrollments, 2)
	assert.Equal(t, mon.ID, students[0].Enrollments[0].ClassSessionID)
	assert.Equal(t, "Main building", students[0].Enrollments[0].ClassSession.Location.Name)
	assert.Equal(t, wed.ID, students[0].Enrollments[1].ClassSessionID)
	assert.NotNil(t, students[1].Enrollments)
	assert.Empty(t, students[1].Enrollments)

	// deleting a student cascades to its relations and enrollments
	require.NoError(t, repo.DeleteStudent(ctx, first.ID))
	_, err = repo.GetStudent(ctx, first.ID)
	assert.Equal(t, registration.ErrStudentNotFound, err)
	students, err = repo.QueryStudentsByGuardian(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, students, 1)

	var enrollments int
	require.NoError(t, db.GetContext(ctx, &enrollments, "SELECT COUNT(*) FROM enrollments"))
	assert.Equal(t, 0, enrollments)
}

func TestRegistrationRepository_transaction(t *testing.T) {
	ctx := context.Background()
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewRegistrationRepository(db)

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	std := newStudent("Hanako", time.Now().UTC())
	require.NoError(t, repo.CreateStudent(ctx, std, tx))

	_, err = repo.GetStudent(ctx, std.ID, tx)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	_, err = repo.GetStudent(ctx, std.ID)
	assert.Equal(t, registration.ErrStudentNotFound, err)
}
