package dig_container

import (
	"fmt"
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/juku/apps/api/echo"
	"github.com/trezcool/juku/core"
	"github.com/trezcool/juku/core/identity"
	"github.com/trezcool/juku/core/organization"
	"github.com/trezcool/juku/core/registration"
	identitysvc "github.com/trezcool/juku/services/identity"
	logsvc "github.com/trezcool/juku/services/logger"
	"github.com/trezcool/juku/storage/database"
	sqlxrepos "github.com/trezcool/juku/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DB, core.DBExecutor) {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db, db
}

// newAuthenticator returns the mock authenticator when a mock user is configured, LINE Login otherwise.
func newAuthenticator(conf *core.Config, logger core.Logger) identity.Authenticator {
	if id := conf.Identity.MockUserID; id != "" {
		logger.Warn(fmt.Sprintf("identity: every request is logged in as %q", id))
		return identitysvc.NewMockService(id, conf.Identity.MockDisplayName)
	}
	return identitysvc.NewLINEService(conf)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(core.NewDefaultValidator))
	must(c.Provide(newAuthenticator))
	must(c.Provide(
		sqlxrepos.NewOrganizationRepository,
		dig.As(new(organization.Repository), new(registration.OrganizationRepository)),
	))
	must(c.Provide(sqlxrepos.NewRegistrationRepository, dig.As(new(registration.Repository))))
	must(c.Provide(organization.NewService))
	must(c.Provide(registration.NewService))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
