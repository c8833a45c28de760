package logsvc

import (
	"log"
	"sync"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/syllabus/core"
)

// RollbarLogger reports to rollbar and mirrors every event to a std logger.
type RollbarLogger struct {
	std *log.Logger
	mu  *sync.Mutex // the rollbar person is global
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std, mu: new(sync.Mutex)}
}

// Enable turns rollbar reporting on or off. The std logger is always on.
func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled && rollbar.Token() != "")
}

// Close waits for the pending rollbar reports.
func (l RollbarLogger) Close() {
	rollbar.Wait()
}

// split separates the core.Person (the first one) from the args reported to rollbar.
// expected args: error, map[string]interface{}, core.Person
func split(msg string, args []interface{}) ([]interface{}, *core.Person) {
	var person *core.Person
	rbArgs := make([]interface{}, 0, len(args)+1)
	rbArgs = append(rbArgs, msg)
	for _, arg := range args {
		if p, ok := arg.(core.Person); ok {
			if person == nil {
				person = &p
			}
			continue
		}
		rbArgs = append(rbArgs, arg)
	}
	return rbArgs, person
}

func (l RollbarLogger) log(report func(...interface{}), msg string, args []interface{}) {
	rbArgs, person := split(msg, args)

	l.mu.Lock()
	if person != nil {
		rollbar.SetPerson(person.ID, person.Username, person.Email)
	} else {
		rollbar.ClearPerson()
	}
	report(rbArgs...)
	l.mu.Unlock()

	l.std.Println(msg)
	for _, arg := range rbArgs[1:] {
		l.std.Printf("%+v\n", arg)
	}
	if person != nil {
		l.std.Printf("person: %s (%s)\n", person.Username, person.ID)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	l.log(rollbar.Debug, msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	l.log(rollbar.Info, msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	l.log(rollbar.Warning, msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	l.log(rollbar.Error, msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(rollbar.Critical, msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
