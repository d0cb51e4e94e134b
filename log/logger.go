package log

import (
	"io"
	"log"
	"os"
)

type Level int

type Logger interface {
	Level() Level
	Enabled(level Level) bool

	WithLevel(level Level) Logger
	WithPrefix(prefix string) Logger

	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	// Reportf logs regardless of level
	Reportf(format string, args ...interface{})
}

const (
	Debug Level = iota
	Info
	Warn
	Error
	None
)

var levelNames = [...]struct{ name, tag string }{
	Debug: {"debug", "[debug]"},
	Info:  {"info", "[info]"},
	Warn:  {"warn", "[warning]"},
	Error: {"error", "[error]"},
	None:  {"none", "-"},
}

// logger writes errors to one sink and everything else to another. Copies made
// by WithLevel and WithPrefix share both sinks.
type logger struct {
	level  Level
	prefix string
	err    *log.Logger
	out    *log.Logger
}

func NewNullLogger() Logger {
	return &logger{level: None}
}

func NewDebugLogger() Logger {
	return newLogger(os.Stderr, os.Stdout, Debug, log.Ldate)
}

func NewLogger(err io.Writer, out io.Writer, level Level) Logger {
	return newLogger(err, out, level, log.Ldate|log.Ltime|log.LUTC)
}

func newLogger(err io.Writer, out io.Writer, level Level, flags int) *logger {
	return &logger{
		level: level,
		err:   log.New(err, "", flags),
		out:   log.New(out, "", flags),
	}
}

func (l *logger) WithLevel(level Level) Logger {
	c := *l
	c.level = level
	return &c
}

func (l *logger) WithPrefix(prefix string) Logger {
	c := *l
	if c.prefix != "" {
		prefix = c.prefix + "/" + prefix
	}
	c.prefix = prefix
	return &c
}

func (l *logger) Level() Level {
	return l.level
}

// Enabled reports whether messages at the given level would be written.
// Callers use it to skip building expensive debug arguments.
func (l *logger) Enabled(level Level) bool {
	return l.level != None && level >= l.level
}

func (l *logger) Debugf(format string, values ...interface{}) {
	l.logf(Debug, format, values...)
}

func (l *logger) Infof(format string, values ...interface{}) {
	l.logf(Info, format, values...)
}

func (l *logger) Warnf(format string, values ...interface{}) {
	l.logf(Warn, format, values...)
}

func (l *logger) Errorf(format string, values ...interface{}) {
	l.logf(Error, format, values...)
}

func (l *logger) Reportf(format string, values ...interface{}) {
	if l.level == None {
		return
	}
	l.out.Printf(l.decorate("", format), values...)
}

func (l *logger) logf(level Level, format string, values ...interface{}) {
	if !l.Enabled(level) {
		return
	}
	sink := l.out
	if level == Error {
		sink = l.err
	}
	sink.Printf(l.decorate(level.tag(), format), values...)
}

// decorate puts the level tag and the <prefix> in front of format.
func (l *logger) decorate(tag string, format string) string {
	head := tag
	if l.prefix != "" {
		if head != "" {
			head += " "
		}
		head += "<" + l.prefix + ">"
	}
	if head == "" {
		return format
	}
	return head + " " + format
}

func (level Level) String() string {
	if level < Debug || level > None {
		return "unknown"
	}
	return levelNames[level].name
}

func (level Level) tag() string {
	if level < Debug || level > None {
		return "-"
	}
	return levelNames[level].tag
}
