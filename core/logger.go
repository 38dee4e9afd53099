package core

// Logger is implemented by the logging services.
// args may hold errors, maps of extra data and the user.User at the origin of the event.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
