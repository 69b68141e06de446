package testutil

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/juku/core"
	"github.com/trezcool/juku/core/organization"
	"github.com/trezcool/juku/core/registration"
	"github.com/trezcool/juku/storage/database"
)

// PrepareDB opens a migrated SQLite database in a temporary directory. It is closed when the test ends.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()

	conf := &core.Config{Database: core.DatabaseConfig{
		Engine: database.EngineSQLite,
		Path:   filepath.Join(t.TempDir(), "juku_test.db"),
	}}
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

func CreateOrganization(t *testing.T, repo organization.Repository, code, name string) organization.Organization {
	t.Helper()
	org, err := repo.CreateOrganization(context.Background(), organization.Organization{
		ID:          uuid.NewString(),
		Code:        code,
		Name:        name,
		ContactInfo: organization.ContactInfo{Phone: "03-1234-5678"},
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateOrganization() failed: %v", err)
	}
	return org
}

func CreateLocation(t *testing.T, repo organization.Repository, org organization.Organization, name string) organization.Location {
	t.Helper()
	loc, err := repo.CreateLocation(context.Background(), organization.Location{
		ID:             uuid.NewString(),
		OrganizationID: org.ID,
		Name:           name,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateLocation() failed: %v", err)
	}
	return loc
}

// CreateClassSession creates a class session; start and end are "HH:MM:SS" times.
func CreateClassSession(
	t *testing.T,
	repo organization.Repository,
	loc organization.Location,
	name string,
	day int,
	start, end string,
) organization.ClassSession {
	t.Helper()
	cs, err := repo.CreateClassSession(context.Background(), organization.ClassSession{
		ID:         uuid.NewString(),
		LocationID: loc.ID,
		Name:       name,
		DayOfWeek:  day,
		StartTime:  start,
		EndTime:    end,
		Capacity:   10,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateClassSession() failed: %v", err)
	}
	cs.Location = loc
	return cs
}

func CreateGuardian(t *testing.T, repo registration.Repository, org organization.Organization, externalUserID, name string) registration.Guardian {
	t.Helper()
	g, err := repo.CreateGuardian(context.Background(), registration.Guardian{
		ID:             uuid.NewString(),
		ExternalUserID: externalUserID,
		Name:           name,
		DisplayName:    name,
		OrganizationID: org.ID,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateGuardian() failed: %v", err)
	}
	return g
}

// LogEntry is a message recorded by Logger.
type LogEntry struct {
	Level string
	Msg   string
	Args  []interface{}
}

// Logger is a core.Logger recording what is logged, for assertions.
type Logger struct {
	mu      sync.Mutex
	Entries []LogEntry
}

var _ core.Logger = (*Logger)(nil)

func NewLogger() *Logger {
	return &Logger{}
}

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, LogEntry{Level: level, Msg: msg, Args: args})
}

// Errors returns the messages logged at the error level.
func (l *Logger) Errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var msgs []string
	for _, e := range l.Entries {
		if e.Level == "error" {
			msgs = append(msgs, e.Msg)
		}
	}
	return msgs
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("debug", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("info", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("warn", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("error", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.log("fatal", msg, args) }
