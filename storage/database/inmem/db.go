package inmemdb

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/juku/core"
	"github.com/trezcool/juku/core/organization"
	"github.com/trezcool/juku/core/registration"
)

// Table names, as reported by DB.Count.
const (
	TableOrganizations = "organizations"
	TableLocations     = "locations"
	TableClassSessions = "class_sessions"
	TableGuardians     = "guardians"
	TableStudents      = "students"
	TableRelations     = "student_guardian_relations"
	TableEnrollments   = "enrollments"
)

var errConstraint = errors.New("constraint failed")

type relationKey struct {
	guardianID string
	studentID  string
}

type fault struct {
	remaining int // calls left before the fault fires
	err       error
}

// DB is an in-memory store enforcing the same unique, foreign key and check constraints as the SQL schema.
// It has no transactions: services using it fall back to compensating deletes.
type DB struct {
	mutex sync.RWMutex

	organizations map[string]organization.Organization
	locations     map[string]organization.Location
	classSessions map[string]organization.ClassSession
	guardians     map[string]registration.Guardian
	students      map[string]registration.Student
	relations     map[relationKey]registration.Relation
	enrollments   map[string]registration.Enrollment

	faults map[string]*fault
}

func Open() *DB {
	return &DB{
		organizations: make(map[string]organization.Organization),
		locations:     make(map[string]organization.Location),
		classSessions: make(map[string]organization.ClassSession),
		guardians:     make(map[string]registration.Guardian),
		students:      make(map[string]registration.Student),
		relations:     make(map[relationKey]registration.Relation),
		enrollments:   make(map[string]registration.Enrollment),
		faults:        make(map[string]*fault),
	}
}

// InjectFault makes the nth next call (1-based) of the repository method op fail with err.
// eg. InjectFault("CreateEnrollment", 2, err) fails the second enrollment insert.
func (db *DB) InjectFault(op string, nth int, err error) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.faults[op] = &fault{remaining: nth, err: err}
}

// ClearFaults removes all the injected faults.
func (db *DB) ClearFaults() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.faults = make(map[string]*fault)
}

// fail must be called with the mutex held (for writing).
func (db *DB) fail(op string) error {
	f, ok := db.faults[op]
	if !ok {
		return nil
	}
	f.remaining--
	if f.remaining > 0 {
		return nil
	}
	delete(db.faults, op)
	return f.err
}

// Count returns the number of rows in the table.
func (db *DB) Count(table string) int {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	switch table {
	case TableOrganizations:
		return len(db.organizations)
	case TableLocations:
		return len(db.locations)
	case TableClassSessions:
		return len(db.classSessions)
	case TableGuardians:
		return len(db.guardians)
	case TableStudents:
		return len(db.students)
	case TableRelations:
		return len(db.relations)
	case TableEnrollments:
		return len(db.enrollments)
	}
	return 0
}

func constraintError(constraint string) error {
	return core.NewConstraintError(errConstraint, constraint)
}
