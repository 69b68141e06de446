package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/juku/core"
	"github.com/trezcool/juku/core/identity"
)

// RollbarLogger prints to a std logger and reports to Rollbar when enabled.
type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(false)
	return &RollbarLogger{std: std}
}

func (l *RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled && rollbar.Token() != "")
}

// Close waits for the queued Rollbar items to be sent.
func (l *RollbarLogger) Close() {
	rollbar.Wait()
}

// prepare extracts the identity.User (reported as the Rollbar person) from args.
func (l *RollbarLogger) prepare(msg string, args []interface{}) (rbArgs, stdArgs []interface{}) {
	var person *identity.User
	rbArgs = make([]interface{}, 0, len(args)+1)
	rbArgs = append(rbArgs, msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case identity.User:
			if person == nil {
				person = &a
			}
		case *identity.User:
			if person == nil && a != nil {
				person = a
			}
		default:
			rbArgs = append(rbArgs, arg)
			stdArgs = append(stdArgs, arg)
		}
	}
	if person != nil {
		rollbar.SetPerson(person.ExternalID, person.DisplayName, "")
	} else {
		rollbar.ClearPerson()
	}
	return rbArgs, stdArgs
}

func (l *RollbarLogger) print(level, msg string, args []interface{}) {
	l.std.Println(level + " " + msg)
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
	}
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	rbArgs, stdArgs := l.prepare(msg, args)
	rollbar.Debug(rbArgs...)
	l.print("DEBUG", msg, stdArgs)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	rbArgs, stdArgs := l.prepare(msg, args)
	rollbar.Info(rbArgs...)
	l.print("INFO", msg, stdArgs)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	rbArgs, stdArgs := l.prepare(msg, args)
	rollbar.Warning(rbArgs...)
	l.print("WARN", msg, stdArgs)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	rbArgs, stdArgs := l.prepare(msg, args)
	rollbar.Error(rbArgs...)
	l.print("ERROR", msg, stdArgs)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	rbArgs, stdArgs := l.prepare(msg, args)
	rollbar.Critical(rbArgs...)
	l.print("FATAL", msg, stdArgs)
	rollbar.Wait()
	l.std.Fatal(msg)
}
