package fmi

import "go.uber.org/zap"

// Logger receives diagnostic messages from a model instance. It never
// influences control flow.
type Logger func(instance string, status Status, category, message string)

// NewZapLogger routes model messages to log, picking the level from status.
func NewZapLogger(log *zap.Logger) Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return func(instance string, status Status, category, message string) {
		if instance == "" {
			instance = "?"
		}
		if category == "" {
			category = "?"
		}
		fields := []zap.Field{
			zap.String("instance", instance),
			zap.Stringer("status", status),
			zap.String("category", category),
		}
		switch {
		case status == OK:
			log.Debug(message, fields...)
		case status == Warning:
			log.Warn(message, fields...)
		case status.Failed():
			log.Error(message, fields...)
		default:
			log.Info(message, fields...)
		}
	}
}

// Log calls l if it is set.
func (l Logger) Log(instance string, status Status, category, message string) {
	if l != nil {
		l(instance, status, category, message)
	}
}
