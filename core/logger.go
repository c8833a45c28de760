package core

// Person identifies the caller an event is logged on behalf of.
type Person struct {
	ID       string
	Username string
	Email    string
}

// Logger is any service that can log application events.
// expected args: error, map[string]interface{}, Person
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
