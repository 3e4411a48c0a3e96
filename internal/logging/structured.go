// Package logging provides structured logging utilities with error context integration.
package logging

import (
	stderrors "errors"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/actual-software/llm-pacer/internal/errors"
)

// WithError adds error context to logger fields.
func WithError(err error) []zap.Field {
	if err == nil {
		return []zap.Field{}
	}

	fields := []zap.Field{
		zap.Error(err),
	}

	// If it's a PacerError, add all context
	var pacerErr *errors.PacerError
	if stderrors.As(err, &pacerErr) {
		fields = append(fields,
			zap.String("error_type", string(pacerErr.Type)),
			zap.String("component", pacerErr.Component),
			zap.String("operation", pacerErr.Operation),
			zap.String("severity", string(pacerErr.Severity)),
		)

		// Add context fields
		if len(pacerErr.Context) > 0 {
			fields = append(fields, zap.Any("error_context", pacerErr.Context))
		}

		// Add stack trace for high severity errors
		if pacerErr.Severity == errors.SeverityHigh {
			if len(pacerErr.Stack) > 0 {
				fields = append(fields, zap.Strings("stack_trace", pacerErr.Stack))
			}
		}
	}

	return fields
}

// LogError logs an error with full context at a level matching its severity.
func LogError(logger *zap.Logger, msg string, err error, additionalFields ...zap.Field) {
	fields := WithError(err)
	fields = append(fields, additionalFields...)

	logAtLevel(logger, getLogLevelForError(err), msg, fields)
}

// getLogLevelForError determines the appropriate log level based on error severity.
func getLogLevelForError(err error) zapcore.Level {
	var pacerErr *errors.PacerError
	if !stderrors.As(err, &pacerErr) {
		return zapcore.ErrorLevel
	}

	switch pacerErr.Severity {
	case errors.SeverityLow:
		return zapcore.WarnLevel
	case errors.SeverityMedium, errors.SeverityHigh:
		return zapcore.ErrorLevel
	default:
		return zapcore.ErrorLevel
	}
}

// logAtLevel logs a message at the specified level.
func logAtLevel(logger *zap.Logger, level zapcore.Level, msg string, fields []zap.Field) {
	switch level {
	case zapcore.DebugLevel:
		logger.Debug(msg, fields...)
	case zapcore.InfoLevel:
		logger.Info(msg, fields...)
	case zapcore.WarnLevel:
		logger.Warn(msg, fields...)
	default:
		logger.Error(msg, fields...)
	}
}
