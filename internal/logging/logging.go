package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Context is the process-wide logging sink. It is created once in main and
// handed to every component that traces; nothing in this module logs through
// a package-level logger.
type Context struct {
	mu      sync.Mutex
	logger  *logrus.Logger
	console io.Writer
	file    *os.File
	path    string
}

// fileFormatter is used once a log file is attached, so the file can be
// ingested the same way as the service event stream.
var fileFormatter = &logrus.JSONFormatter{
	TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	FieldMap: logrus.FieldMap{
		logrus.FieldKeyTime:  "timestamp",
		logrus.FieldKeyLevel: "level",
		logrus.FieldKeyMsg:   "message",
	},
}

var consoleFormatter = &logrus.TextFormatter{
	DisableColors:    true,
	DisableTimestamp: true,
}

// New creates a console-only logging context writing to out.
func New(out io.Writer) *Context {
	if out == nil {
		out = os.Stdout
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(consoleFormatter)

	return &Context{
		logger:  logger,
		console: out,
	}
}

// SetLogFile tees all further output to path in addition to the console.
// An empty path detaches any attached file and returns to console-only.
func (c *Context) SetLogFile(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if path == "" {
		c.detachLocked()
		return nil
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return err
	}

	c.detachLocked()
	c.file = file
	c.path = path
	c.logger.SetOutput(io.MultiWriter(c.console, file))
	c.logger.SetFormatter(fileFormatter)

	c.logger.WithField("log_file", path).Info("File logging enabled")
	return nil
}

// LogFile returns the attached log file path, or "" when logging is console-only.
func (c *Context) LogFile() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}

// SetLevel parses level and applies it. Unknown levels fall back to info.
func (c *Context) SetLevel(level string) {
	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = logrus.InfoLevel
		c.logger.WithError(err).Warn("Invalid log level, defaulting to info")
	}
	c.logger.SetLevel(parsed)
}

// Trace writes a plain informational marker.
func (c *Context) Trace(msg string) {
	c.logger.Info(msg)
}

// Tracef is Trace with formatting.
func (c *Context) Tracef(format string, args ...interface{}) {
	c.logger.Infof(format, args...)
}

// Logger exposes the underlying logrus logger.
func (c *Context) Logger() *logrus.Logger {
	return c.logger
}

// Component creates an entry tagged with the component name.
func (c *Context) Component(name string) *logrus.Entry {
	return c.logger.WithField("component", name)
}

// Close detaches and closes the log file, if any.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	c.path = ""
	c.logger.SetOutput(c.console)
	c.logger.SetFormatter(consoleFormatter)
	return err
}

func (c *Context) detachLocked() {
	if c.file != nil {
		c.file.Close()
		c.file = nil
	}
	c.path = ""
	c.logger.SetOutput(c.console)
	c.logger.SetFormatter(consoleFormatter)
}
