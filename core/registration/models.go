package registration

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/juku/core"
	"github.com/trezcool/juku/core/organization"
)

const DefaultRelationType = "guardian"

// Guardian is the registering adult account. It belongs to exactly one Organization.
type Guardian struct {
	ID             string                   `json:"id"`
	ExternalUserID string                   `json:"externalUserId"`
	Name           string                   `json:"name"`
	DisplayName    string                   `json:"displayName"`
	OrganizationID string                   `json:"organizationId"`
	ContactInfo    organization.ContactInfo `json:"contactInfo"`
	CreatedAt      time.Time                `json:"createdAt"` // UTC
}

type Student struct {
	ID                    string       `json:"id"`
	FamilyName            string       `json:"familyName"`
	GivenName             string       `json:"givenName"`
	FamilyNameKana        string       `json:"familyNameKana"`
	GivenNameKana         string       `json:"givenNameKana"`
	BirthDate             null.Time    `json:"birthDate"`
	Gender                null.String  `json:"gender"`
	SchoolName            null.String  `json:"schoolName"`
	RemainingMakeups      int          `json:"remainingMakeups"` // never negative
	OrganizationStudentID null.String  `json:"organizationStudentId"`
	Enrollments           []Enrollment `json:"enrollments"`
	CreatedAt             time.Time    `json:"createdAt"` // UTC
}

func (s Student) FullName() string {
	return s.FamilyName + " " + s.GivenName
}

type Relation struct {
	GuardianID   string    `json:"guardianId"`
	StudentID    string    `json:"studentId"`
	RelationType string    `json:"relationType"`
	CreatedAt    time.Time `json:"-"` // UTC
}

// Enrollment is a student's standing registration in a recurring class session.
type Enrollment struct {
	ID             string                    `json:"id"`
	StudentID      string                    `json:"studentId"`
	ClassSessionID string                    `json:"classSessionId"`
	ClassSession   organization.ClassSession `json:"classSession"`
	CreatedAt      time.Time                 `json:"-"` // UTC
}

// Registration is the outcome of a lookup by external user id.
type Registration struct {
	Registered   bool                       `json:"isRegistered"`
	Guardian     *Guardian                  `json:"guardian"`
	Organization *organization.Organization `json:"organization"`
	Students     []Student                  `json:"students"`
}

// NewGuardian contains information needed to register a new Guardian.
type NewGuardian struct {
	ExternalUserID string `json:"externalUserId" validate:"required"`
	OrganizationID string `json:"organizationId" validate:"required"`
	Name           string `json:"name" validate:"required,notblank,max=100"`
	DisplayName    string `json:"displayName" validate:"max=100"`
	Phone          string `json:"phone" validate:"omitempty,phone"`
}

func (ng *NewGuardian) Clean() {
	ng.ExternalUserID = core.CleanString(ng.ExternalUserID)
	ng.OrganizationID = core.CleanString(ng.OrganizationID)
	ng.Name = core.CleanString(ng.Name)
	ng.DisplayName = core.CleanString(ng.DisplayName)
	if ng.DisplayName == "" {
		ng.DisplayName = ng.Name
	}
	ng.Phone = core.CleanString(ng.Phone)
}

// NewStudent contains information needed to register a new Student under a Guardian.
type NewStudent struct {
	GuardianExternalUserID string   `json:"guardianExternalUserId" validate:"required"`
	FamilyName             string   `json:"familyName" validate:"required,notblank,max=50"`
	GivenName              string   `json:"givenName" validate:"required,notblank,max=50"`
	FamilyNameKana         string   `json:"familyNameKana" validate:"required,kana,max=50"`
	GivenNameKana          string   `json:"givenNameKana" validate:"required,kana,max=50"`
	BirthDate              string   `json:"birthDate" validate:"omitempty,datetime=2006-01-02"`
	Gender                 string   `json:"gender" validate:"omitempty,oneof=male female other"`
	SchoolName             string   `json:"schoolName" validate:"max=100"`
	OrganizationStudentID  string   `json:"organizationStudentId" validate:"max=50"`
	RelationType           string   `json:"relationType" validate:"max=50"`
	Enrollments            []string `json:"enrollments" validate:"dive,required"`
}

func (ns *NewStudent) Clean() {
	ns.GuardianExternalUserID = core.CleanString(ns.GuardianExternalUserID)
	ns.FamilyName = core.CleanString(ns.FamilyName)
	ns.GivenName = core.CleanString(ns.GivenName)
	ns.FamilyNameKana = core.CleanString(ns.FamilyNameKana)
	ns.GivenNameKana = core.CleanString(ns.GivenNameKana)
	ns.BirthDate = core.CleanString(ns.BirthDate)
	ns.Gender = core.CleanString(ns.Gender, true /* lower */)
	ns.SchoolName = core.CleanString(ns.SchoolName)
	ns.OrganizationStudentID = core.CleanString(ns.OrganizationStudentID)
	ns.RelationType = core.CleanString(ns.RelationType)
	if ns.RelationType == "" {
		ns.RelationType = DefaultRelationType
	}

	for i, id := range ns.Enrollments {
		ns.Enrollments[i] = core.CleanString(id)
	}
}

func (ns NewStudent) student(id string, now time.Time) Student {
	std := Student{
		ID:                    id,
		FamilyName:            ns.FamilyName,
		GivenName:             ns.GivenName,
		FamilyNameKana:        ns.FamilyNameKana,
		GivenNameKana:         ns.GivenNameKana,
		Gender:                null.NewString(ns.Gender, ns.Gender != ""),
		SchoolName:            null.NewString(ns.SchoolName, ns.SchoolName != ""),
		OrganizationStudentID: null.NewString(ns.OrganizationStudentID, ns.OrganizationStudentID != ""),
		CreatedAt:             now,
	}
	if bd, err := time.Parse("2006-01-02", ns.BirthDate); err == nil {
		std.BirthDate = null.TimeFrom(bd)
	}
	return std
}
