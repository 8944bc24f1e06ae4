// Package logger configures structured logging for the pipeline and server.
package logger

import (
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus entry so call sites can chain fields directly.
type Logger struct {
	*logrus.Entry
}

// New builds a logger from the environment: pretty console output locally,
// JSON everywhere else, level from LOG_LEVEL.
func New() *Logger {
	base := logrus.New()

	env := os.Getenv("ENVIRONMENT")
	if env == "" || env == "local" {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
		})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	}

	base.SetOutput(os.Stdout)

	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		base.SetLevel(logrus.DebugLevel)
	case "warn":
		base.SetLevel(logrus.WarnLevel)
	case "error":
		base.SetLevel(logrus.ErrorLevel)
	default:
		base.SetLevel(logrus.InfoLevel)
	}

	return &Logger{Entry: logrus.NewEntry(base)}
}

// WithModule tags entries with the component emitting them.
func (l *Logger) WithModule(name string) *Logger {
	return &Logger{Entry: l.WithField("module", name)}
}

// WithProject tags entries with the project being processed.
func (l *Logger) WithProject(id uuid.UUID) *Logger {
	return &Logger{Entry: l.WithField("project_id", id.String())}
}

// WithChunk tags entries with a chunk's project-relative index.
func (l *Logger) WithChunk(index int) *Logger {
	return &Logger{Entry: l.WithField("chunk_index", index)}
}

// WithRequest attaches request metadata for HTTP access logging.
func (l *Logger) WithRequest(r *http.Request) *logrus.Entry {
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = uuid.New().String()
	}

	return l.WithFields(logrus.Fields{
		"req_id":    reqID,
		"method":    r.Method,
		"path":      r.URL.Path,
		"remote_ip": r.RemoteAddr,
	})
}
