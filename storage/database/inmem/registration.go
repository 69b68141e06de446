package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/juku/core"
	"github.com/trezcool/juku/core/registration"
)

type registrationRepository struct {
	db *DB
}

var _ registration.Repository = (*registrationRepository)(nil) // interface compliance check

func NewRegistrationRepository(db *DB) *registrationRepository {
	return &registrationRepository{db: db}
}

// Guardians

func (repo *registrationRepository) CreateGuardian(_ context.Context, g registration.Guardian, _ ...core.DBExecutor) (registration.Guardian, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.db.fail("CreateGuardian"); err != nil {
		return registration.Guardian{}, err
	}
	if _, ok := repo.db.organizations[g.OrganizationID]; !ok {
		return registration.Guardian{}, constraintError("guardians_organization_id_fkey")
	}
	for _, existing := range repo.db.guardians {
		if existing.ExternalUserID == g.ExternalUserID {
			return registration.Guardian{}, constraintError("guardians_external_user_id_key")
		}
	}
	repo.db.guardians[g.ID] = g
	return g, nil
}

func (repo *registrationRepository) GetGuardianByExternalID(_ context.Context, externalUserID string, _ ...core.DBExecutor) (registration.Guardian, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.db.fail("GetGuardianByExternalID"); err != nil {
		return registration.Guardian{}, err
	}
	for _, g := range repo.db.guardians {
		if g.ExternalUserID == externalUserID {
			return g, nil
		}
	}
	return registration.Guardian{}, registration.ErrGuardianNotFound
}

// Students

func (repo *registrationRepository) CreateStudent(_ context.Context, s registration.Student, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.db.fail("CreateStudent"); err != nil {
		return err
	}
	if _, ok := repo.db.students[s.ID]; ok {
		return constraintError("students_pkey")
	}
	if s.RemainingMakeups < 0 {
		return constraintError("students_remaining_makeups_check")
	}
	s.Enrollments = nil
	repo.db.students[s.ID] = s
	return nil
}

// DeleteStudent cascades to the student's relations and enrollments.
func (repo *registrationRepository) DeleteStudent(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.db.fail("DeleteStudent"); err != nil {
		return err
	}
	delete(repo.db.students, id)
	for key := range repo.db.relations {
		if key.studentID == id {
			delete(repo.db.relations, key)
		}
	}
	for enrID, enr := range repo.db.enrollments {
		if enr.StudentID == id {
			delete(repo.db.enrollments, enrID)
		}
	}
	return nil
}

// student returns the student with its enrollments. The mutex must be held.
func (db *DB) student(id string) (registration.Student, bool) {
	std, ok := db.students[id]
	if !ok {
		return registration.Student{}, false
	}

	std.Enrollments = make([]registration.Enrollment, 0)
	for _, enr := range db.enrollments {
		if enr.StudentID != id {
			continue
		}
		enr.ClassSession, _ = db.classSession(enr.ClassSessionID)
		std.Enrollments = append(std.Enrollments, enr)
	}
	sort.Slice(std.Enrollments, func(i, j int) bool {
		a, b := std.Enrollments[i].ClassSession, std.Enrollments[j].ClassSession
		if a.DayOfWeek != b.DayOfWeek {
			return a.DayOfWeek < b.DayOfWeek
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.Name < b.Name
	})
	return std, true
}

func (repo *registrationRepository) GetStudent(_ context.Context, id string, _ ...core.DBExecutor) (registration.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.db.fail("GetStudent"); err != nil {
		return registration.Student{}, err
	}
	if std, ok := repo.db.student(id); ok {
		return std, nil
	}
	return registration.Student{}, registration.ErrStudentNotFound
}

func (repo *registrationRepository) QueryStudentsByGuardian(_ context.Context, guardianID string, _ ...core.DBExecutor) ([]registration.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.db.fail("QueryStudentsByGuardian"); err != nil {
		return nil, err
	}
	students := make([]registration.Student, 0)
	for key := range repo.db.relations {
		if key.guardianID != guardianID {
			continue
		}
		if std, ok := repo.db.student(key.studentID); ok {
			students = append(students, std)
		}
	}
	sort.Slice(students, func(i, j int) bool {
		if !students[i].CreatedAt.Equal(students[j].CreatedAt) {
			return students[i].CreatedAt.Before(students[j].CreatedAt)
		}
		return students[i].ID < students[j].ID
	})
	return students, nil
}

// Relations

func (repo *registrationRepository) CreateRelation(_ context.Context, r registration.Relation, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.db.fail("CreateRelation"); err != nil {
		return err
	}
	if _, ok := repo.db.guardians[r.GuardianID]; !ok {
		return constraintError("student_guardian_relations_guardian_id_fkey")
	}
	if _, ok := repo.db.students[r.StudentID]; !ok {
		return constraintError("student_guardian_relations_student_id_fkey")
	}
	key := relationKey{guardianID: r.GuardianID, studentID: r.StudentID}
	if _, ok := repo.db.relations[key]; ok {
		return constraintError("student_guardian_relations_pkey")
	}
	repo.db.relations[key] = r
	return nil
}

func (repo *registrationRepository) DeleteRelation(_ context.Context, guardianID, studentID string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.db.fail("DeleteRelation"); err != nil {
		return err
	}
	delete(repo.db.relations, relationKey{guardianID: guardianID, studentID: studentID})
	return nil
}

// Enrollments

func (repo *registrationRepository) CreateEnrollment(_ context.Context, e registration.Enrollment, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.db.fail("CreateEnrollment"); err != nil {
		return err
	}
	if _, ok := repo.db.students[e.StudentID]; !ok {
		return constraintError("enrollments_student_id_fkey")
	}
	if _, ok := repo.db.classSessions[e.ClassSessionID]; !ok {
		return constraintError("enrollments_class_session_id_fkey")
	}
	for _, existing := range repo.db.enrollments {
		if existing.StudentID == e.StudentID && existing.ClassSessionID == e.ClassSessionID {
			return constraintError("enrollments_student_id_class_session_id_key")
		}
	}
	e.ClassSession = repo.db.classSessions[e.ClassSessionID]
	repo.db.enrollments[e.ID] = e
	return nil
}

func (repo *registrationRepository) DeleteEnrollment(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.db.fail("DeleteEnrollment"); err != nil {
		return err
	}
	delete(repo.db.enrollments, id)
	return nil
}
