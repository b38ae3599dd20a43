package logger

import (
	"github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
)

// Init configures the global logrus logger.
func Init(level string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
		log.Errorf("invalid log level %q, defaulting to info", level)
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
}

// InitSentry initializes Sentry when a DSN is configured. Returns nil hub
// (capture becomes a no-op) when dsn is empty.
func InitSentry(dsn, release string) (*sentry.Hub, error) {
	if dsn == "" {
		return nil, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		AttachStacktrace: true,
		Release:          release,
	})
	if err != nil {
		return nil, err
	}
	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("module", "voiceclone")
	})
	return hub, nil
}

// LogAndCapture logs an error with context fields and forwards it to Sentry
// when a hub is available.
func LogAndCapture(hub *sentry.Hub, err error, context string, fields map[string]interface{}) {
	if err == nil {
		return
	}
	entry := log.WithField("context", context)
	if fields != nil {
		entry = entry.WithFields(log.Fields(fields))
	}
	entry.Error(err)

	if hub != nil {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetExtra("context", context)
			for k, v := range fields {
				scope.SetExtra(k, v)
			}
			hub.CaptureException(err)
		})
	}
}
