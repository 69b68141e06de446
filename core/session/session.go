package session

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/juku/core"
	"github.com/trezcool/juku/core/identity"
	"github.com/trezcool/juku/core/organization"
	"github.com/trezcool/juku/core/registration"
)

type Route string

const (
	RouteError            Route = "error"
	RouteRegisterGuardian Route = "register_guardian"
	RouteRegisterStudent  Route = "register_student"
	RouteHome             Route = "home"
)

var (
	// user-facing messages
	MsgOpenFromApp     = "please open this page from the app"
	MsgSystemError     = "a system error occurred, please try again later"
	MsgOrgNotFound     = "organization not found"
	MsgInvalidAccess   = "invalid access: use the link provided by your school"
	MsgNotPending      = "this account is already registered"
	MsgNotRegistered   = "please register as a guardian first"
	MsgClassesRequired = "please select at least one class"

	errNotPending    = core.NewConflictError(MsgNotPending)
	errNotRegistered = core.NewValidationError(errors.New(MsgNotRegistered))
	errNoClasses     = core.NewValidationError(nil, core.FieldError{Field: "enrollments", Error: MsgClassesRequired})
)

// Outcome is the routing decision of a bootstrap or a registration step.
type Outcome struct {
	Route   Route  `json:"route"`
	Message string `json:"message,omitempty"`
	Err     error  `json:"-"` // cause of an unexpected failure, for logging
}

func errorOutcome(msg string, err error) Outcome {
	return Outcome{Route: RouteError, Message: msg, Err: err}
}

type (
	Looker interface {
		Lookup(ctx context.Context, externalUserID string) (registration.Registration, error)
	}

	Resolver interface {
		ResolveByCode(ctx context.Context, code string) (organization.Organization, error)
	}

	Registrar interface {
		CreateGuardian(ctx context.Context, ng registration.NewGuardian) (registration.Guardian, error)
		CreateStudent(ctx context.Context, ns registration.NewStudent) (registration.Student, error)
		StudentsOfGuardian(ctx context.Context, guardianID string) ([]registration.Student, error)
	}

	Deps struct {
		Registrations Looker
		Organizations Resolver
	}
)

// Session holds the current user, their organization and students.
// It is built once by Bootstrap and passed to the screen-level operations.
type Session struct {
	User         identity.User              `json:"user"`
	Organization *organization.Organization `json:"organization"`
	Guardian     *registration.Guardian     `json:"guardian"`
	Students     []registration.Student     `json:"students"`
}

// Registered tells whether the session user is a registered guardian.
func (s *Session) Registered() bool {
	return s.Guardian != nil
}

// Bootstrap identifies the user, looks up their registration and decides where to route them.
// A registered guardian is always routed home with their own organization: orgCode only matters to unregistered users.
func Bootstrap(ctx context.Context, deps Deps, provider identity.Provider, orgCode string) (*Session, Outcome) {
	if provider == nil || !provider.IsLoggedIn() {
		return nil, errorOutcome(MsgOpenFromApp, nil)
	}
	usr, err := provider.CurrentUser(ctx)
	if err != nil {
		return nil, errorOutcome(MsgOpenFromApp, err)
	}

	reg, err := deps.Registrations.Lookup(ctx, usr.ExternalID)
	if err != nil {
		return nil, errorOutcome(MsgSystemError, err)
	}

	sess := &Session{User: usr, Students: []registration.Student{}}
	if reg.Registered {
		sess.Guardian = reg.Guardian
		sess.Organization = reg.Organization
		if reg.Students != nil {
			sess.Students = reg.Students
		}
		return sess, Outcome{Route: RouteHome}
	}

	if orgCode == "" {
		return nil, errorOutcome(MsgInvalidAccess, nil)
	}
	org, err := deps.Organizations.ResolveByCode(ctx, orgCode)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, errorOutcome(MsgOrgNotFound, nil)
		}
		return nil, errorOutcome(MsgSystemError, err)
	}
	sess.Organization = &org
	return sess, Outcome{Route: RouteRegisterGuardian}
}

// RegisterGuardian registers the session user as a guardian of the pending organization.
// It routes to student registration when the guardian has no student yet, home otherwise.
func (s *Session) RegisterGuardian(ctx context.Context, registrar Registrar, name, phone string) (Outcome, error) {
	if s.Registered() {
		return Outcome{}, errNotPending
	}
	if s.Organization == nil {
		return Outcome{}, core.NewValidationError(errors.New(MsgInvalidAccess))
	}

	g, err := registrar.CreateGuardian(ctx, registration.NewGuardian{
		ExternalUserID: s.User.ExternalID,
		OrganizationID: s.Organization.ID,
		Name:           name,
		DisplayName:    s.User.DisplayName,
		Phone:          phone,
	})
	if err != nil {
		return Outcome{}, err
	}
	s.Guardian = &g

	students, err := registrar.StudentsOfGuardian(ctx, g.ID)
	if err != nil {
		return Outcome{}, err
	}
	s.Students = students

	if len(s.Students) == 0 {
		return Outcome{Route: RouteRegisterStudent}, nil
	}
	return Outcome{Route: RouteHome}, nil
}

// RegisterStudent registers a student under the session guardian.
// At least one class is required here, although the registration itself accepts none.
func (s *Session) RegisterStudent(ctx context.Context, registrar Registrar, ns registration.NewStudent) (registration.Student, error) {
	if !s.Registered() {
		return registration.Student{}, errNotRegistered
	}
	if len(ns.Enrollments) == 0 {
		return registration.Student{}, errNoClasses
	}

	ns.GuardianExternalUserID = s.User.ExternalID
	std, err := registrar.CreateStudent(ctx, ns)
	if err != nil {
		return registration.Student{}, err
	}
	s.Students = append(s.Students, std)
	return std, nil
}
