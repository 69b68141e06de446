package registration_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/juku/core"
	"github.com/trezcool/juku/core/organization"
	"github.com/trezcool/juku/core/registration"
	inmemdb "github.com/trezcool/juku/storage/database/inmem"
	sqlxrepos "github.com/trezcool/juku/storage/database/sqlx"
	testutil "github.com/trezcool/juku/tests"
)

var errStoreDown = core.NewStoreError(errors.New("connection refused"), "store unavailable")

type fixture struct {
	svc     *registration.Service
	db      *inmemdb.DB
	orgRepo organization.Repository
	repo    registration.Repository
	logger  *testutil.Logger

	org      organization.Organization
	otherOrg organization.Organization
	classA   organization.ClassSession
	classB   organization.ClassSession
}

func setup(t *testing.T) *fixture {
	db := inmemdb.Open()
	f := &fixture{
		db:      db,
		orgRepo: inmemdb.NewOrganizationRepository(db),
		repo:    inmemdb.NewRegistrationRepository(db),
		logger:  testutil.NewLogger(),
	}
	f.svc = registration.NewService(nil, f.repo, f.orgRepo, core.NewDefaultValidator(), f.logger)

	f.org = testutil.CreateOrganization(t, f.orgRepo, "shibuya", "Shibuya School")
	f.otherOrg = testutil.CreateOrganization(t, f.orgRepo, "meguro", "Meguro School")
	loc := testutil.CreateLocation(t, f.orgRepo, f.org, "Main building")
	f.classA = testutil.CreateClassSession(t, f.orgRepo, loc, "Math", 1, "16:00:00", "17:00:00")
	f.classB = testutil.CreateClassSession(t, f.orgRepo, loc, "English", 3, "17:00:00", "18:00:00")
	return f
}

func newStudent(guardianExtID string, classes ...string) registration.NewStudent {
	return registration.NewStudent{
		GuardianExternalUserID: guardianExtID,
		FamilyName:             "山田",
		GivenName:              "太郎",
		FamilyNameKana:         "ヤマダ",
		GivenNameKana:          "タロウ",
		BirthDate:              "2015-04-01",
		SchoolName:             "Shibuya Elementary",
		Enrollments:            classes,
	}
}

func (f *fixture) assertNoStudentRows(t *testing.T) {
	t.Helper()
	assert.Equal(t, 0, f.db.Count(inmemdb.TableStudents), "students")
	assert.Equal(t, 0, f.db.Count(inmemdb.TableRelations), "relations")
	assert.Equal(t, 0, f.db.Count(inmemdb.TableEnrollments), "enrollments")
}

func TestService_Lookup(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	t.Run("unregistered", func(t *testing.T) {
		for _, extID := range []string{"Uunknown", "U" + f.org.ID, "shibuya"} {
			reg, err := f.svc.Lookup(ctx, extID)
			require.NoError(t, err)
			assert.False(t, reg.Registered)
			assert.Nil(t, reg.Guardian)
			assert.NotNil(t, reg.Students)
			assert.Empty(t, reg.Students)
		}
	})

	t.Run("registered without students", func(t *testing.T) {
		g := testutil.CreateGuardian(t, f.repo, f.org, "Ulookup1", "Hanako")
		reg, err := f.svc.Lookup(ctx, "Ulookup1")
		require.NoError(t, err)
		assert.True(t, reg.Registered)
		assert.Equal(t, g.ID, reg.Guardian.ID)
		assert.Equal(t, f.org.ID, reg.Organization.ID)
		assert.NotNil(t, reg.Students)
		assert.Empty(t, reg.Students)
	})

	t.Run("registered with students", func(t *testing.T) {
		testutil.CreateGuardian(t, f.repo, f.org, "Ulookup2", "Keiko")
		_, err := f.svc.CreateStudent(ctx, newStudent("Ulookup2", f.classA.ID))
		require.NoError(t, err)

		reg, err := f.svc.Lookup(ctx, "Ulookup2")
		require.NoError(t, err)
		require.Len(t, reg.Students, 1)
		require.Len(t, reg.Students[0].Enrollments, 1)
		enr := reg.Students[0].Enrollments[0]
		assert.Equal(t, f.classA.ID, enr.ClassSession.ID)
		assert.Equal(t, "Main building", enr.ClassSession.Location.Name)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := f.svc.Lookup(ctx, "  ")
		assert.True(t, core.IsValidationError(err))
	})

	t.Run("store failure is not 'not registered'", func(t *testing.T) {
		f.db.InjectFault("GetGuardianByExternalID", 1, errStoreDown)
		_, err := f.svc.Lookup(ctx, "Uunknown")
		require.Error(t, err)
		assert.True(t, core.IsStoreError(err))
		assert.False(t, core.IsNotFound(err))
	})
}

func TestService_CreateGuardian(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	tests := []struct {
		name    string
		data    registration.NewGuardian
		wantErr func(error) bool
	}{
		{
			name:    "missing name",
			data:    registration.NewGuardian{ExternalUserID: "U1", OrganizationID: f.org.ID, Name: "  "},
			wantErr: core.IsValidationError,
		},
		{
			name:    "missing organization",
			data:    registration.NewGuardian{ExternalUserID: "U1", Name: "Hanako"},
			wantErr: core.IsValidationError,
		},
		{
			name:    "missing external id",
			data:    registration.NewGuardian{OrganizationID: f.org.ID, Name: "Hanako"},
			wantErr: core.IsValidationError,
		},
		{
			name:    "invalid phone",
			data:    registration.NewGuardian{ExternalUserID: "U1", OrganizationID: f.org.ID, Name: "Hanako", Phone: "abc"},
			wantErr: core.IsValidationError,
		},
		{
			name:    "unknown organization",
			data:    registration.NewGuardian{ExternalUserID: "U1", OrganizationID: "6b1e8f34-3d4f-4c44-9a53-3c3a8e0e0a11", Name: "Hanako"},
			wantErr: core.IsNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateGuardian(ctx, tt.data)
			assert.True(t, tt.wantErr(err), "got %v", err)
		})
	}
	assert.Equal(t, 0, f.db.Count(inmemdb.TableGuardians))

	t.Run("register twice", func(t *testing.T) {
		ng := registration.NewGuardian{ExternalUserID: "Utwice", OrganizationID: f.org.ID, Name: " Hanako ", Phone: "090-1234-5678"}
		g, err := f.svc.CreateGuardian(ctx, ng)
		require.NoError(t, err)
		assert.Equal(t, "Hanako", g.Name)
		assert.Equal(t, "Hanako", g.DisplayName)
		assert.Equal(t, "090-1234-5678", g.ContactInfo.Phone)

		// visible to lookup right away
		reg, err := f.svc.Lookup(ctx, "Utwice")
		require.NoError(t, err)
		assert.True(t, reg.Registered)

		_, err = f.svc.CreateGuardian(ctx, ng)
		assert.True(t, core.IsConflict(err))
		assert.Equal(t, registration.ErrGuardianExists, err)

		ng.OrganizationID = f.otherOrg.ID
		_, err = f.svc.CreateGuardian(ctx, ng)
		assert.True(t, core.IsConflict(err))
		assert.Equal(t, registration.ErrRegisteredElsewhere, err)

		assert.Equal(t, 1, f.db.Count(inmemdb.TableGuardians))
	})
}

func TestService_CreateStudent(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := setup(t)
		g := testutil.CreateGuardian(t, f.repo, f.org, "Ustudent", "Hanako")

		std, err := f.svc.CreateStudent(ctx, newStudent("Ustudent", f.classB.ID, f.classA.ID))
		require.NoError(t, err)
		assert.Equal(t, "山田", std.FamilyName)
		assert.Equal(t, 0, std.RemainingMakeups)
		assert.True(t, std.BirthDate.Valid)
		assert.Equal(t, "Shibuya Elementary", std.SchoolName.String)
		assert.False(t, std.Gender.Valid)
		require.Len(t, std.Enrollments, 2)
		// ordered by day of week
		assert.Equal(t, f.classA.ID, std.Enrollments[0].ClassSessionID)
		assert.Equal(t, f.classB.ID, std.Enrollments[1].ClassSessionID)

		assert.Equal(t, 1, f.db.Count(inmemdb.TableStudents))
		assert.Equal(t, 1, f.db.Count(inmemdb.TableRelations))
		assert.Equal(t, 2, f.db.Count(inmemdb.TableEnrollments))

		students, err := f.svc.StudentsOfGuardian(ctx, g.ID)
		require.NoError(t, err)
		require.Len(t, students, 1)
		assert.Equal(t, std.ID, students[0].ID)
	})

	t.Run("no enrollments", func(t *testing.T) {
		f := setup(t)
		testutil.CreateGuardian(t, f.repo, f.org, "Unone", "Hanako")

		std, err := f.svc.CreateStudent(ctx, newStudent("Unone"))
		require.NoError(t, err)
		assert.Empty(t, std.Enrollments)
		assert.Equal(t, 1, f.db.Count(inmemdb.TableStudents))
	})

	t.Run("unknown guardian", func(t *testing.T) {
		f := setup(t)
		_, err := f.svc.CreateStudent(ctx, newStudent("Unobody", f.classA.ID))
		assert.True(t, core.IsNotFound(err))
		f.assertNoStudentRows(t)
	})

	t.Run("invalid input", func(t *testing.T) {
		f := setup(t)
		testutil.CreateGuardian(t, f.repo, f.org, "Uinvalid", "Hanako")

		ns := newStudent("Uinvalid", f.classA.ID)
		ns.GivenNameKana = "taro"
		_, err := f.svc.CreateStudent(ctx, ns)
		assert.True(t, core.IsValidationError(err))

		ns = newStudent("Uinvalid", f.classA.ID)
		ns.BirthDate = "01/04/2015"
		_, err = f.svc.CreateStudent(ctx, ns)
		assert.True(t, core.IsValidationError(err))

		f.assertNoStudentRows(t)
	})

	failures := []struct {
		name    string
		op      string
		nth     int
		err     error
		classes func(f *fixture) []string
		wantErr func(error) bool
	}{
		{
			name:    "student insert fails",
			op:      "CreateStudent",
			nth:     1,
			err:     errStoreDown,
			wantErr: core.IsStoreError,
		},
		{
			name:    "relation insert fails",
			op:      "CreateRelation",
			nth:     1,
			err:     errStoreDown,
			wantErr: core.IsStoreError,
		},
		{
			name:    "first enrollment insert fails",
			op:      "CreateEnrollment",
			nth:     1,
			err:     errStoreDown,
			wantErr: core.IsStoreError,
		},
		{
			name:    "second enrollment insert fails",
			op:      "CreateEnrollment",
			nth:     2,
			err:     errStoreDown,
			wantErr: core.IsStoreError,
		},
		{
			name:    "unknown class session",
			classes: func(f *fixture) []string { return []string{f.classA.ID, "0d7c8a42-2b0e-4e0e-8f4b-1f1f1f1f1f1f"} },
			wantErr: core.IsValidationError,
		},
		{
			name:    "duplicate class session",
			classes: func(f *fixture) []string { return []string{f.classA.ID, f.classA.ID} },
			wantErr: core.IsValidationError,
		},
	}

	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			testutil.CreateGuardian(t, f.repo, f.org, "Ufail", "Hanako")
			classes := []string{f.classA.ID, f.classB.ID}
			if tt.classes != nil {
				classes = tt.classes(f)
			}
			if tt.op != "" {
				f.db.InjectFault(tt.op, tt.nth, tt.err)
			}

			_, err := f.svc.CreateStudent(ctx, newStudent("Ufail", classes...))
			require.Error(t, err)
			assert.True(t, tt.wantErr(err), "got %v", err)
			f.assertNoStudentRows(t)
			assert.Empty(t, f.logger.Errors())
		})
	}

	t.Run("compensation failure is logged, original error returned", func(t *testing.T) {
		f := setup(t)
		testutil.CreateGuardian(t, f.repo, f.org, "Ucomp", "Hanako")
		f.db.InjectFault("CreateEnrollment", 2, errStoreDown)
		f.db.InjectFault("DeleteRelation", 1, errors.New("delete failed"))

		_, err := f.svc.CreateStudent(ctx, newStudent("Ucomp", f.classA.ID, f.classB.ID))
		require.Error(t, err)
		assert.Equal(t, errStoreDown, errors.Cause(err))
		assert.Equal(t, []string{"compensation failed: deleting guardian-student relation"}, f.logger.Errors())

		// deleting the student cascades to what was left behind
		f.assertNoStudentRows(t)
	})

	t.Run("enrollments and relation are undone before the student", func(t *testing.T) {
		f := setup(t)
		testutil.CreateGuardian(t, f.repo, f.org, "Ucomp", "Hanako")
		f.db.InjectFault("CreateEnrollment", 2, errStoreDown)
		f.db.InjectFault("DeleteStudent", 1, errors.New("delete failed"))

		_, err := f.svc.CreateStudent(ctx, newStudent("Ucomp", f.classA.ID, f.classB.ID))
		require.Error(t, err)
		assert.Equal(t, errStoreDown, errors.Cause(err))
		assert.Equal(t, []string{"compensation failed: deleting student"}, f.logger.Errors())
		assert.Equal(t, 0, f.db.Count(inmemdb.TableEnrollments), "enrollments")
		assert.Equal(t, 0, f.db.Count(inmemdb.TableRelations), "relations")
		assert.Equal(t, 1, f.db.Count(inmemdb.TableStudents), "students")

		// cleared faults no longer fire
		f.db.InjectFault("CreateStudent", 1, errStoreDown)
		f.db.ClearFaults()
		std, err := f.svc.CreateStudent(ctx, newStudent("Ucomp", f.classA.ID, f.classB.ID))
		require.NoError(t, err)
		assert.Len(t, std.Enrollments, 2)
		assert.Equal(t, 2, f.db.Count(inmemdb.TableStudents), "students")
	})
}

func TestService_CreateStudent_transaction(t *testing.T) {
	ctx := context.Background()
	db := testutil.PrepareDB(t)
	orgRepo := sqlxrepos.NewOrganizationRepository(db)
	repo := sqlxrepos.NewRegistrationRepository(db)
	svc := registration.NewService(db, repo, orgRepo, core.NewDefaultValidator(), testutil.NewLogger())

	org := testutil.CreateOrganization(t, orgRepo, "shibuya", "Shibuya School")
	loc := testutil.CreateLocation(t, orgRepo, org, "Main building")
	classA := testutil.CreateClassSession(t, orgRepo, loc, "Math", 1, "16:00:00", "17:00:00")
	classB := testutil.CreateClassSession(t, orgRepo, loc, "English", 3, "17:00:00", "18:00:00")
	g := testutil.CreateGuardian(t, repo, org, "Utx", "Hanako")

	countRows := func(table string) int {
		var n int
		require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM "+table))
		return n
	}

	_, err := svc.CreateStudent(ctx, newStudent("Utx", classA.ID, "0d7c8a42-2b0e-4e0e-8f4b-1f1f1f1f1f1f"))
	require.Error(t, err)
	assert.True(t, core.IsValidationError(err), "got %v", err)
	assert.Equal(t, 0, countRows("students"))
	assert.Equal(t, 0, countRows("student_guardian_relations"))
	assert.Equal(t, 0, countRows("enrollments"))

	std, err := svc.CreateStudent(ctx, newStudent("Utx", classB.ID, classA.ID))
	require.NoError(t, err)
	require.Len(t, std.Enrollments, 2)
	assert.Equal(t, classA.ID, std.Enrollments[0].ClassSession.ID)
	assert.Equal(t, "Main building", std.Enrollments[0].ClassSession.Location.Name)
	assert.Equal(t, "2015-04-01", std.BirthDate.Time.Format("2006-01-02"))

	students, err := svc.StudentsOfGuardian(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Len(t, students[0].Enrollments, 2)
}
