package logger

// Field is a structured key/value attached to a log line.
type Field struct {
	Key   string
	Value any
}

// Client is the logging surface every component depends on.
type Client interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Err is shorthand for the error field used across the codebase.
func Err(err error) Field {
	return Field{Key: "err", Value: err}
}

type nop struct{}

// Nop returns a Client that discards everything.
func Nop() Client { return nop{} }

func (nop) Debug(string, ...Field) {}
func (nop) Info(string, ...Field)  {}
func (nop) Warn(string, ...Field)  {}
func (nop) Error(string, ...Field) {}
