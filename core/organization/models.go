package organization

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/juku/core"
)

var Weekdays = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// ContactInfo is stored as a JSON document.
type ContactInfo struct {
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

func (ci ContactInfo) Value() (driver.Value, error) {
	data, err := json.Marshal(ci)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (ci *ContactInfo) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*ci = ContactInfo{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into ContactInfo", src)
	}
	if len(data) == 0 {
		*ci = ContactInfo{}
		return nil
	}
	return json.Unmarshal(data, ci)
}

// Organization is a tenant: a school site or chain, identified in entry links by its Code.
type Organization struct {
	ID          string      `json:"id" db:"organization_id"`
	Code        string      `json:"code" db:"code"`
	Name        string      `json:"name" db:"name"`
	ContactInfo ContactInfo `json:"contactInfo" db:"contact_info"`
	CreatedAt   time.Time   `json:"-" db:"created_at"` // UTC
}

type Location struct {
	ID             string    `json:"id" db:"location_id"`
	OrganizationID string    `json:"organizationId,omitempty" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	CreatedAt      time.Time `json:"-" db:"created_at"` // UTC
}

// ClassSession is a recurring weekly class held at a Location.
type ClassSession struct {
	ID         string    `json:"id"`
	LocationID string    `json:"-"`
	Name       string    `json:"name"`
	DayOfWeek  int       `json:"dayOfWeek"` // 0 (Sunday) - 6 (Saturday)
	StartTime  string    `json:"startTime"` // HH:MM:SS
	EndTime    string    `json:"endTime"`   // HH:MM:SS
	Capacity   int       `json:"capacity"`
	Location   Location  `json:"location"`
	CreatedAt  time.Time `json:"-"` // UTC
}

func (cs ClassSession) Weekday() string {
	if cs.DayOfWeek < 0 || cs.DayOfWeek >= len(Weekdays) {
		return ""
	}
	return Weekdays[cs.DayOfWeek]
}

// ClassOrdering is the order in which class sessions are listed.
var ClassOrdering = []core.DBOrdering{
	{Field: "day_of_week", Ascending: true},
	{Field: "start_time", Ascending: true},
	{Field: "name", Ascending: true},
}

// NewOrganization contains information needed to provision a new Organization.
type NewOrganization struct {
	Code  string `json:"code" validate:"required,max=64,alphanum_"`
	Name  string `json:"name" validate:"required,notblank"`
	Phone string `json:"phone" validate:"omitempty,phone"`
	Email string `json:"email" validate:"omitempty,email"`
}

func (no *NewOrganization) Clean() {
	no.Code = core.CleanString(no.Code)
	no.Name = core.CleanString(no.Name)
	no.Phone = core.CleanString(no.Phone)
	no.Email = core.CleanString(no.Email, true /* lower */)
}

// NewLocation contains information needed to provision a new Location.
type NewLocation struct {
	OrganizationID string `json:"organizationId" validate:"required,uuid"`
	Name           string `json:"name" validate:"required,notblank"`
}

// NewClassSession contains information needed to provision a new ClassSession.
type NewClassSession struct {
	LocationID string `json:"locationId" validate:"required,uuid"`
	Name       string `json:"name" validate:"required,notblank"`
	DayOfWeek  int    `json:"dayOfWeek" validate:"min=0,max=6"`
	StartTime  string `json:"startTime" validate:"required"`
	EndTime    string `json:"endTime" validate:"required"`
	Capacity   int    `json:"capacity" validate:"min=0"`
}

var timeLayouts = []string{"15:04:05", "15:04"}

// NormalizeTime parses "HH:MM" or "HH:MM:SS" and returns "HH:MM:SS".
func NormalizeTime(s string) (string, error) {
	s = core.CleanString(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04:05"), nil
		}
	}
	return "", errors.Errorf("invalid time %q", s)
}

// Clean normalizes the start & end times and checks that the class starts before it ends.
func (nc *NewClassSession) Clean() error {
	nc.Name = core.CleanString(nc.Name)

	start, err := NormalizeTime(nc.StartTime)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "startTime", Error: "invalid time, expected HH:MM"})
	}
	end, err := NormalizeTime(nc.EndTime)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "endTime", Error: "invalid time, expected HH:MM"})
	}
	if start >= end {
		return core.NewValidationError(nil, core.FieldError{Field: "endTime", Error: "class must end after it starts"})
	}
	nc.StartTime, nc.EndTime = start, end
	return nil
}
