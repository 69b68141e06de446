package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/juku/core"
	"github.com/trezcool/juku/core/organization"
	"github.com/trezcool/juku/core/registration"
	"github.com/trezcool/juku/storage/database"
)

type registrationRepository struct {
	repository
}

var _ registration.Repository = (*registrationRepository)(nil) // interface compliance check

func NewRegistrationRepository(exec core.DBExecutor) *registrationRepository {
	return &registrationRepository{repository{exec: exec}}
}

const (
	guardianColumns = "guardian_id, external_user_id, name, display_name, organization_id, contact_info, created_at"
	studentColumns  = `s.student_id, s.family_name, s.given_name, s.family_name_kana, s.given_name_kana, s.birth_date,
       s.gender, s.school_name, s.remaining_makeups, s.organization_student_id, s.created_at`

	enrollmentSelect = `
SELECT e.enrollment_id, e.student_id, e.class_session_id, e.created_at,
       cs.location_id, cs.name, cs.day_of_week, cs.start_time, cs.end_time, cs.capacity,
       l.name AS location_name, l.organization_id
  FROM enrollments e
  JOIN class_sessions cs ON cs.class_session_id = e.class_session_id
  JOIN locations l ON l.location_id = cs.location_id
 WHERE e.student_id IN (?)
 ORDER BY cs.day_of_week, cs.start_time, cs.name`
)

type guardianRow struct {
	ID             string                   `db:"guardian_id"`
	ExternalUserID string                   `db:"external_user_id"`
	Name           string                   `db:"name"`
	DisplayName    string                   `db:"display_name"`
	OrganizationID string                   `db:"organization_id"`
	ContactInfo    organization.ContactInfo `db:"contact_info"`
	CreatedAt      time.Time                `db:"created_at"`
}

func (row guardianRow) unpack() registration.Guardian {
	return registration.Guardian{
		ID:             row.ID,
		ExternalUserID: row.ExternalUserID,
		Name:           row.Name,
		DisplayName:    row.DisplayName,
		OrganizationID: row.OrganizationID,
		ContactInfo:    row.ContactInfo,
		CreatedAt:      row.CreatedAt.UTC(),
	}
}

type studentRow struct {
	ID                    string      `db:"student_id"`
	FamilyName            string      `db:"family_name"`
	GivenName             string      `db:"given_name"`
	FamilyNameKana        string      `db:"family_name_kana"`
	GivenNameKana         string      `db:"given_name_kana"`
	BirthDate             null.Time   `db:"birth_date"`
	Gender                null.String `db:"gender"`
	SchoolName            null.String `db:"school_name"`
	RemainingMakeups      int         `db:"remaining_makeups"`
	OrganizationStudentID null.String `db:"organization_student_id"`
	CreatedAt             time.Time   `db:"created_at"`
}

func (row studentRow) unpack() registration.Student {
	std := registration.Student{
		ID:                    row.ID,
		FamilyName:            row.FamilyName,
		GivenName:             row.GivenName,
		FamilyNameKana:        row.FamilyNameKana,
		GivenNameKana:         row.GivenNameKana,
		BirthDate:             row.BirthDate,
		Gender:                row.Gender,
		SchoolName:            row.SchoolName,
		RemainingMakeups:      row.RemainingMakeups,
		OrganizationStudentID: row.OrganizationStudentID,
		Enrollments:           []registration.Enrollment{},
		CreatedAt:             row.CreatedAt.UTC(),
	}
	if std.BirthDate.Valid {
		std.BirthDate.Time = std.BirthDate.Time.UTC()
	}
	return std
}

type enrollmentRow struct {
	ID             string    `db:"enrollment_id"`
	StudentID      string    `db:"student_id"`
	ClassSessionID string    `db:"class_session_id"`
	CreatedAt      time.Time `db:"created_at"`
	LocationID     string    `db:"location_id"`
	Name           string    `db:"name"`
	DayOfWeek      int       `db:"day_of_week"`
	StartTime      string    `db:"start_time"`
	EndTime        string    `db:"end_time"`
	Capacity       int       `db:"capacity"`
	LocationName   string    `db:"location_name"`
	OrganizationID string    `db:"organization_id"`
}

func (row enrollmentRow) unpack() registration.Enrollment {
	return registration.Enrollment{
		ID:             row.ID,
		StudentID:      row.StudentID,
		ClassSessionID: row.ClassSessionID,
		CreatedAt:      row.CreatedAt.UTC(),
		ClassSession: classSessionRow{
			ID:             row.ClassSessionID,
			LocationID:     row.LocationID,
			Name:           row.Name,
			DayOfWeek:      row.DayOfWeek,
			StartTime:      row.StartTime,
			EndTime:        row.EndTime,
			Capacity:       row.Capacity,
			LocationName:   row.LocationName,
			OrganizationID: row.OrganizationID,
		}.unpack(),
	}
}

// Guardians

func (repo registrationRepository) CreateGuardian(ctx context.Context, g registration.Guardian, exec ...core.DBExecutor) (registration.Guardian, error) {
	exe := repo.getExec(exec)
	g.CreatedAt = g.CreatedAt.UTC()
	q := exe.Rebind("INSERT INTO guardians (" + guardianColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?)")
	_, err := exe.ExecContext(ctx, q, g.ID, g.ExternalUserID, g.Name, g.DisplayName, g.OrganizationID, g.ContactInfo, g.CreatedAt)
	if err != nil {
		return registration.Guardian{}, database.Classify(err, "inserting guardian")
	}
	return g, nil
}

func (repo registrationRepository) getGuardian(ctx context.Context, where string, arg interface{}, exec []core.DBExecutor) (registration.Guardian, error) {
	exe := repo.getExec(exec)
	var row guardianRow
	q := exe.Rebind("SELECT " + guardianColumns + " FROM guardians WHERE " + where + " = ?")
	if err := exe.GetContext(ctx, &row, q, arg); err != nil {
		return registration.Guardian{}, trapNoRowsErr(err, registration.ErrGuardianNotFound, "getting guardian")
	}
	return row.unpack(), nil
}

func (repo registrationRepository) GetGuardianByExternalID(ctx context.Context, externalUserID string, exec ...core.DBExecutor) (registration.Guardian, error) {
	return repo.getGuardian(ctx, "external_user_id", externalUserID, exec)
}

// Students

func (repo registrationRepository) CreateStudent(ctx context.Context, s registration.Student, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	q := exe.Rebind(`
INSERT INTO students (student_id, family_name, given_name, family_name_kana, given_name_kana, birth_date, gender,
                      school_name, remaining_makeups, organization_student_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := exe.ExecContext(ctx, q,
		s.ID, s.FamilyName, s.GivenName, s.FamilyNameKana, s.GivenNameKana, s.BirthDate, s.Gender,
		s.SchoolName, s.RemainingMakeups, s.OrganizationStudentID, s.CreatedAt.UTC())
	return database.Classify(err, "inserting student")
}

func (repo registrationRepository) DeleteStudent(ctx context.Context, id string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	_, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM students WHERE student_id = ?"), id)
	return database.Classify(err, "deleting student")
}

func (repo registrationRepository) GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (registration.Student, error) {
	exe := repo.getExec(exec)
	var row studentRow
	q := exe.Rebind("SELECT " + studentColumns + " FROM students s WHERE s.student_id = ?")
	if err := exe.GetContext(ctx, &row, q, id); err != nil {
		return registration.Student{}, trapNoRowsErr(err, registration.ErrStudentNotFound, "getting student")
	}

	students := []registration.Student{row.unpack()}
	if err := repo.loadEnrollments(ctx, exe, students); err != nil {
		return registration.Student{}, err
	}
	return students[0], nil
}

func (repo registrationRepository) QueryStudentsByGuardian(ctx context.Context, guardianID string, exec ...core.DBExecutor) ([]registration.Student, error) {
	exe := repo.getExec(exec)
	var rows []studentRow
	q := exe.Rebind(`
SELECT ` + studentColumns + `
  FROM students s
  JOIN student_guardian_relations r ON r.student_id = s.student_id
 WHERE r.guardian_id = ?
 ORDER BY s.created_at, s.student_id`)
	if err := exe.SelectContext(ctx, &rows, q, guardianID); err != nil {
		return nil, database.Classify(err, "querying guardian students")
	}

	students := make([]registration.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.unpack())
	}
	if err := repo.loadEnrollments(ctx, exe, students); err != nil {
		return nil, err
	}
	return students, nil
}

// loadEnrollments fetches the enrollments (-> class session -> location) of all the students in one query.
func (repo registrationRepository) loadEnrollments(ctx context.Context, exe core.DBExecutor, students []registration.Student) error {
	if len(students) == 0 {
		return nil
	}

	ids := make([]string, 0, len(students))
	index := make(map[string]int, len(students))
	for i, std := range students {
		ids = append(ids, std.ID)
		index[std.ID] = i
	}

	q, args, err := sqlx.In(enrollmentSelect, ids)
	if err != nil {
		return database.Classify(err, "building enrollments query")
	}
	var rows []enrollmentRow
	if err = exe.SelectContext(ctx, &rows, exe.Rebind(q), args...); err != nil {
		return database.Classify(err, "querying enrollments")
	}

	for _, row := range rows {
		i := index[row.StudentID]
		students[i].Enrollments = append(students[i].Enrollments, row.unpack())
	}
	return nil
}

// Relations

func (repo registrationRepository) CreateRelation(ctx context.Context, r registration.Relation, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	q := exe.Rebind("INSERT INTO student_guardian_relations (guardian_id, student_id, relation_type, created_at) VALUES (?, ?, ?, ?)")
	_, err := exe.ExecContext(ctx, q, r.GuardianID, r.StudentID, r.RelationType, r.CreatedAt.UTC())
	return database.Classify(err, "inserting guardian-student relation")
}

func (repo registrationRepository) DeleteRelation(ctx context.Context, guardianID, studentID string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	q := exe.Rebind("DELETE FROM student_guardian_relations WHERE guardian_id = ? AND student_id = ?")
	_, err := exe.ExecContext(ctx, q, guardianID, studentID)
	return database.Classify(err, "deleting guardian-student relation")
}

// Enrollments

func (repo registrationRepository) CreateEnrollment(ctx context.Context, e registration.Enrollment, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	q := exe.Rebind("INSERT INTO enrollments (enrollment_id, student_id, class_session_id, created_at) VALUES (?, ?, ?, ?)")
	_, err := exe.ExecContext(ctx, q, e.ID, e.StudentID, e.ClassSessionID, e.CreatedAt.UTC())
	return database.Classify(err, "inserting enrollment")
}

func (repo registrationRepository) DeleteEnrollment(ctx context.Context, id string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	_, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM enrollments WHERE enrollment_id = ?"), id)
	return database.Classify(err, "deleting enrollment")
}
