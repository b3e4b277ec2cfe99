package events

import (
	"github.com/ThreeDotsLabs/watermill"
	log "github.com/sirupsen/logrus"
)

// LogrusAdapter routes watermill logs through logrus
type LogrusAdapter struct {
	log log.FieldLogger
}

// NewLogrusAdapter wraps logger. A nil logger uses the standard logger.
func NewLogrusAdapter(logger log.FieldLogger) watermill.LoggerAdapter {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return LogrusAdapter{log: logger}
}

func (a LogrusAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.log.WithFields(log.Fields(fields)).WithError(err).Error(msg)
}

func (a LogrusAdapter) Info(msg string, fields watermill.LogFields) {
	a.log.WithFields(log.Fields(fields)).Info(msg)
}

func (a LogrusAdapter) Debug(msg string, fields watermill.LogFields) {
	a.log.WithFields(log.Fields(fields)).Debug(msg)
}

func (a LogrusAdapter) Trace(msg string, fields watermill.LogFields) {
	a.log.WithFields(log.Fields(fields)).Trace(msg)
}

func (a LogrusAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return LogrusAdapter{log: a.log.WithFields(log.Fields(fields))}
}
