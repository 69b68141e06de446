package registration

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/juku/core"
	"github.com/trezcool/juku/core/organization"
)

var (
	// errors
	ErrGuardianNotFound    = core.NewNotFoundError("guardian not found")
	ErrStudentNotFound     = core.NewNotFoundError("student not found")
	ErrGuardianExists      = core.NewConflictError("a guardian is already registered with this account for this organization")
	ErrRegisteredElsewhere = core.NewConflictError("this account is already registered with another organization")
	errMissingExternalID   = core.NewValidationError(nil, core.FieldError{Field: "externalUserId", Error: "this field is required"})
	errInvalidEnrollments  = core.FieldError{Field: "enrollments", Error: "one or more classes are invalid or already enrolled"}
	errInvalidStudent      = core.FieldError{Field: "student", Error: "the student could not be registered"}
)

type (
	Repository interface {
		CreateGuardian(ctx context.Context, g Guardian, exec ...core.DBExecutor) (Guardian, error)
		GetGuardianByExternalID(ctx context.Context, externalUserID string, exec ...core.DBExecutor) (Guardian, error)

		CreateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) error
		DeleteStudent(ctx context.Context, id string, exec ...core.DBExecutor) error
		// GetStudent returns the student with its enrollments -> class session -> location.
		GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error)
		// QueryStudentsByGuardian returns the guardian's students, nested like GetStudent.
		QueryStudentsByGuardian(ctx context.Context, guardianID string, exec ...core.DBExecutor) ([]Student, error)

		CreateRelation(ctx context.Context, r Relation, exec ...core.DBExecutor) error
		DeleteRelation(ctx context.Context, guardianID, studentID string, exec ...core.DBExecutor) error

		CreateEnrollment(ctx context.Context, e Enrollment, exec ...core.DBExecutor) error
		DeleteEnrollment(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	OrganizationRepository interface {
		GetOrganizationByID(ctx context.Context, id string, exec ...core.DBExecutor) (organization.Organization, error)
	}

	Service struct {
		db       core.DB // nil when the store has no transactions
		repo     Repository
		orgRepo  OrganizationRepository
		validate *core.Validator
		logger   core.Logger
	}
)

// NewService returns a registration service.
// When db is nil, student registration falls back to ordered inserts with compensating deletes.
func NewService(db core.DB, repo Repository, orgRepo OrganizationRepository, validate *core.Validator, logger core.Logger) *Service {
	return &Service{
		db:       db,
		repo:     repo,
		orgRepo:  orgRepo,
		validate: validate,
		logger:   logger,
	}
}

// Lookup tells whether a guardian is registered for the external user id.
// An unknown id is not an error: the registration is reported as not registered.
func (svc *Service) Lookup(ctx context.Context, externalUserID string) (Registration, error) {
	externalUserID = core.CleanString(externalUserID)
	if externalUserID == "" {
		return Registration{}, errMissingExternalID
	}

	g, err := svc.repo.GetGuardianByExternalID(ctx, externalUserID)
	if err != nil {
		if core.IsNotFound(err) {
			return Registration{Students: []Student{}}, nil
		}
		return Registration{}, errors.Wrap(err, "looking up guardian")
	}

	org, err := svc.orgRepo.GetOrganizationByID(ctx, g.OrganizationID)
	if err != nil {
		return Registration{}, errors.Wrap(err, "getting guardian organization")
	}

	students, err := svc.StudentsOfGuardian(ctx, g.ID)
	if err != nil {
		return Registration{}, err
	}

	return Registration{
		Registered:   true,
		Guardian:     &g,
		Organization: &org,
		Students:     students,
	}, nil
}

func (svc *Service) StudentsOfGuardian(ctx context.Context, guardianID string) ([]Student, error) {
	if _, err := uuid.Parse(guardianID); err != nil {
		return []Student{}, nil
	}
	students, err := svc.repo.QueryStudentsByGuardian(ctx, guardianID)
	if err != nil {
		return nil, errors.Wrap(err, "querying guardian students")
	}
	if students == nil {
		students = []Student{}
	}
	return students, nil
}

// CreateGuardian registers a guardian for an organization.
// External user ids are unique across all guardians: registering one twice is a conflict, whatever the organization.
func (svc *Service) CreateGuardian(ctx context.Context, ng NewGuardian) (Guardian, error) {
	ng.Clean()
	if err := svc.validate.Validate(ng); err != nil {
		return Guardian{}, err
	}

	if _, err := uuid.Parse(ng.OrganizationID); err != nil {
		return Guardian{}, organization.ErrNotFound
	}
	if _, err := svc.orgRepo.GetOrganizationByID(ctx, ng.OrganizationID); err != nil {
		return Guardian{}, err
	}

	existing, err := svc.repo.GetGuardianByExternalID(ctx, ng.ExternalUserID)
	switch {
	case err == nil:
		if existing.OrganizationID == ng.OrganizationID {
			return Guardian{}, ErrGuardianExists
		}
		return Guardian{}, ErrRegisteredElsewhere
	case !core.IsNotFound(err):
		return Guardian{}, errors.Wrap(err, "checking guardian uniqueness")
	}

	g, err := svc.repo.CreateGuardian(ctx, Guardian{
		ID:             uuid.NewString(),
		ExternalUserID: ng.ExternalUserID,
		Name:           ng.Name,
		DisplayName:    ng.DisplayName,
		OrganizationID: ng.OrganizationID,
		ContactInfo:    organization.ContactInfo{Phone: ng.Phone},
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		if core.IsConstraintError(err) { // concurrent registration of the same account
			return Guardian{}, ErrGuardianExists
		}
		return Guardian{}, errors.Wrap(err, "creating guardian")
	}
	return g, nil
}

// CreateStudent registers a student under the guardian, along with their relation and enrollments.
// Either all the rows are created or none is.
func (svc *Service) CreateStudent(ctx context.Context, ns NewStudent) (Student, error) {
	ns.Clean()
	if err := svc.validate.Validate(ns); err != nil {
		return Student{}, err
	}

	g, err := svc.repo.GetGuardianByExternalID(ctx, ns.GuardianExternalUserID)
	if err != nil {
		return Student{}, err
	}

	now := time.Now().UTC()
	std := ns.student(uuid.NewString(), now)
	rel := Relation{
		GuardianID:   g.ID,
		StudentID:    std.ID,
		RelationType: ns.RelationType,
		CreatedAt:    now,
	}
	enrollments := make([]Enrollment, 0, len(ns.Enrollments))
	for _, csID := range ns.Enrollments {
		enrollments = append(enrollments, Enrollment{
			ID:             uuid.NewString(),
			StudentID:      std.ID,
			ClassSessionID: csID,
			CreatedAt:      now,
		})
	}

	if svc.db != nil {
		err = svc.insertStudentTx(ctx, std, rel, enrollments)
	} else {
		err = svc.insertStudentCompensated(ctx, std, rel, enrollments)
	}
	if err != nil {
		return Student{}, err
	}

	created, err := svc.repo.GetStudent(ctx, std.ID)
	if err != nil {
		return Student{}, errors.Wrap(err, "reloading student")
	}
	return created, nil
}

func (svc *Service) insertStudentTx(ctx context.Context, std Student, rel Relation, enrollments []Enrollment) (err error) {
	tx, err := svc.db.BeginTxx(ctx, nil)
	if err != nil {
		return core.NewStoreError(err, "starting transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				svc.logger.Error("rolling back student registration", rbErr)
			}
		}
	}()

	if err = svc.repo.CreateStudent(ctx, std, tx); err != nil {
		return insertError(err, "creating student", errInvalidStudent)
	}
	if err = svc.repo.CreateRelation(ctx, rel, tx); err != nil {
		return insertError(err, "creating guardian-student relation", errInvalidStudent)
	}
	for _, enr := range enrollments {
		if err = svc.repo.CreateEnrollment(ctx, enr, tx); err != nil {
			return insertError(err, "creating enrollment", errInvalidEnrollments)
		}
	}

	if err = tx.Commit(); err != nil {
		return core.NewStoreError(err, "committing student registration")
	}
	return nil
}

// insertStudentCompensated inserts the student, then the relation, then each enrollment.
// When a step fails, the steps that succeeded are undone in reverse order before the error is returned.
func (svc *Service) insertStudentCompensated(ctx context.Context, std Student, rel Relation, enrollments []Enrollment) error {
	var undo compensation

	if err := svc.repo.CreateStudent(ctx, std); err != nil {
		return insertError(err, "creating student", errInvalidStudent)
	}
	undo.add("deleting student", func(ctx context.Context) error {
		return svc.repo.DeleteStudent(ctx, std.ID)
	})

	if err := svc.repo.CreateRelation(ctx, rel); err != nil {
		undo.run(ctx, svc.logger)
		return insertError(err, "creating guardian-student relation", errInvalidStudent)
	}
	undo.add("deleting guardian-student relation", func(ctx context.Context) error {
		return svc.repo.DeleteRelation(ctx, rel.GuardianID, rel.StudentID)
	})

	for _, enr := range enrollments {
		if err := svc.repo.CreateEnrollment(ctx, enr); err != nil {
			undo.run(ctx, svc.logger)
			return insertError(err, "creating enrollment", errInvalidEnrollments)
		}
		enrID := enr.ID
		undo.add("deleting enrollment", func(ctx context.Context) error {
			return svc.repo.DeleteEnrollment(ctx, enrID)
		})
	}
	return nil
}

// insertError reports constraint violations (unknown or duplicate class, ...) as invalid input.
func insertError(err error, msg string, fld core.FieldError) error {
	if core.IsConstraintError(err) {
		return core.NewValidationError(errors.Wrap(err, msg), fld)
	}
	return errors.Wrap(err, msg)
}

type compensationStep struct {
	name string
	undo func(ctx context.Context) error
}

type compensation struct {
	steps []compensationStep
}

func (c *compensation) add(name string, undo func(ctx context.Context) error) {
	c.steps = append(c.steps, compensationStep{name: name, undo: undo})
}

// run undoes the recorded steps, last first. Failures are logged and do not stop the remaining steps.
func (c *compensation) run(ctx context.Context, logger core.Logger) {
	ctx = context.WithoutCancel(ctx)
	for i := len(c.steps) - 1; i >= 0; i-- {
		step := c.steps[i]
		if err := step.undo(ctx); err != nil {
			logger.Error("compensation failed: "+step.name, errors.Wrap(err, step.name))
		}
	}
}
