package logger

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

type actionpackLogger struct {
	// name defines the name of the logger that is published to log as a scope
	name string

	// logger defines the instance of a logrus logger
	logger *logrus.Entry
}

// Version is reported in the ver field of every log line. It is set at build time.
var Version = "unknown"

func newActionpackLogger(name string) *actionpackLogger {
	newLogger := logrus.New()
	newLogger.SetOutput(os.Stdout)

	al := &actionpackLogger{
		name: name,
		logger: newLogger.WithFields(logrus.Fields{
			logFieldScope: name,
			logFieldType:  LogTypeLog,
		}),
	}

	al.EnableJsonOutput(defaultJsonOutput)

	return al
}

// EnableJsonOutput enables JSON formatted output logging.
func (l *actionpackLogger) EnableJsonOutput(enabled bool) {
	var formatter logrus.Formatter

	fieldMap := logrus.FieldMap{
		// If time field name is conflicted, logrus adds "fields." prefix.
		// So rename to unused field @time to avoid the confliction.
		logrus.FieldKeyTime:  logFieldTimeStamp,
		logrus.FieldKeyLevel: logFieldLevel,
		logrus.FieldKeyMsg:   logFieldMessage,
	}

	hostname, _ := os.Hostname()
	data := logrus.Fields{
		logFieldScope:    l.logger.Data[logFieldScope],
		logFieldType:     LogTypeLog,
		logFieldInstance: hostname,
		logFieldVersion:  Version,
	}
	if appId, ok := l.logger.Data[logFieldAppId]; ok {
		data[logFieldAppId] = appId
	}
	l.logger.Data = data

	if enabled {
		formatter = &logrus.JSONFormatter{ //nolint: exhaustruct
			TimestampFormat: time.RFC3339Nano,
			FieldMap:        fieldMap,
		}
	} else {
		formatter = &logrus.TextFormatter{ //nolint: exhaustruct
			TimestampFormat: time.RFC3339Nano,
			FieldMap:        fieldMap,
		}
	}

	l.logger.Logger.SetFormatter(formatter)
}

func (l *actionpackLogger) LogrusEntry() *logrus.Entry {
	return l.logger
}

// SetAppId sets app_id field in the log. Default value is an empty string.
func (l *actionpackLogger) SetAppId(id string) {
	if id == undefinedAppId {
		return
	}
	l.logger = l.logger.WithField(logFieldAppId, id)
}

func toLogrusLevel(lvl LogLevel) logrus.Level {
	// ignore error because it will never happen
	l, _ := logrus.ParseLevel(string(lvl))
	return l
}

// SetLogLevel sets the log output level.
func (l *actionpackLogger) SetLogLevel(logLevel LogLevel) {
	if logLevel == UndefinedLevel {
		return
	}
	l.logger.Logger.SetLevel(toLogrusLevel(logLevel))
}

// LogLevel returns the current log level as a string.
func (l *actionpackLogger) LogLevel() string {
	return l.logger.Logger.GetLevel().String()
}

// IsLogLevelEnabled returns true if the logger will output this LogLevel.
func (l *actionpackLogger) IsLogLevelEnabled(level LogLevel) bool {
	return l.logger.Logger.IsLevelEnabled(toLogrusLevel(level))
}

// SetOutput sets the destination for the logs.
func (l *actionpackLogger) SetOutput(dst io.Writer) {
	l.logger.Logger.SetOutput(dst)
}

// WithLogType specify the log_type field in log. Default value is LogTypeLog.
func (l *actionpackLogger) WithLogType(logType string) Logger {
	return &actionpackLogger{
		name:   l.name,
		logger: l.logger.WithField(logFieldType, logType),
	}
}

// WithFields returns a logger with the added structured fields.
func (l *actionpackLogger) WithFields(fields map[string]any) Logger {
	return &actionpackLogger{
		name:   l.name,
		logger: l.logger.WithFields(fields),
	}
}

// Info logs a message at level Info.
func (l *actionpackLogger) Info(args ...interface{}) {
	l.logger.Log(logrus.InfoLevel, args...)
}

// Infof logs a formatted message at level Info.
func (l *actionpackLogger) Infof(format string, args ...interface{}) {
	l.logger.Logf(logrus.InfoLevel, format, args...)
}

// Debug logs a message at level Debug.
func (l *actionpackLogger) Debug(args ...interface{}) {
	l.logger.Log(logrus.DebugLevel, args...)
}

// Debugf logs a formatted message at level Debug.
func (l *actionpackLogger) Debugf(format string, args ...interface{}) {
	l.logger.Logf(logrus.DebugLevel, format, args...)
}

// Warn logs a message at level Warn.
func (l *actionpackLogger) Warn(args ...interface{}) {
	l.logger.Log(logrus.WarnLevel, args...)
}

// Warnf logs a formatted message at level Warn.
func (l *actionpackLogger) Warnf(format string, args ...interface{}) {
	l.logger.Logf(logrus.WarnLevel, format, args...)
}

// Error logs a message at level Error.
func (l *actionpackLogger) Error(args ...interface{}) {
	l.logger.Log(logrus.ErrorLevel, args...)
}

// Errorf logs a formatted message at level Error.
func (l *actionpackLogger) Errorf(format string, args ...interface{}) {
	l.logger.Logf(logrus.ErrorLevel, format, args...)
}

// Fatal logs a message at level Fatal then the process will exit with status set to 1.
func (l *actionpackLogger) Fatal(args ...interface{}) {
	l.logger.Fatal(args...)
}

// Fatalf logs a formatted message at level Fatal then the process will exit with status set to 1.
func (l *actionpackLogger) Fatalf(format string, args ...interface{}) {
	l.logger.Fatalf(format, args...)
}
