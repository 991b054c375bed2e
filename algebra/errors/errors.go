// Package errors provides the error taxonomy of the relational algebra engine.
//
// Every plan-construction failure is an *Error carrying a code. Sentinel values
// (ErrSchemaConflict, ErrUnknownColumn, ...) match any error with the same code
// through errors.Is, so callers never need to compare messages.
package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/guileen/memquery/logger"
)

// Error codes
const (
	ErrCodeSchemaConflict     = "schema_conflict"
	ErrCodeInvalidJoinInput   = "invalid_join_input"
	ErrCodeUnknownColumn      = "unknown_column"
	ErrCodeUnknownAggregation = "unknown_aggregation"
	ErrCodeInvalidArgument    = "invalid_argument"
	ErrCodeEvaluation         = "evaluation_error"
	ErrCodeUnknownRelation    = "unknown_relation"
	ErrCodeRowLimit           = "row_limit_exceeded"
)

// Error is the error type returned by plan construction and row evaluation.
type Error struct {
	Code    string
	Op      string
	Message string
	// Column is the offending column name, when there is one.
	Column string
	Err    error
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap implements the unwrap interface for error chaining
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Log logs the error with the package logger.
func (e *Error) Log(ctx context.Context, level slog.Level) {
	fields := []any{
		"error_code", e.Code,
		"operation", e.Op,
		"message", e.Message,
	}
	if e.Column != "" {
		fields = append(fields, "column", e.Column)
	}
	if e.Err != nil {
		fields = append(fields, "cause", e.Err.Error())
	}

	switch level {
	case slog.LevelDebug:
		logger.DebugContext(ctx, "Algebra error occurred", fields...)
	case slog.LevelInfo:
		logger.InfoContext(ctx, "Algebra error occurred", fields...)
	case slog.LevelWarn:
		logger.WarnContext(ctx, "Algebra error occurred", fields...)
	default:
		logger.ErrorContext(ctx, "Algebra error occurred", fields...)
	}
}

// Sentinels for errors.Is
var (
	ErrSchemaConflict     = &Error{Code: ErrCodeSchemaConflict, Message: "schema conflict"}
	ErrInvalidJoinInput   = &Error{Code: ErrCodeInvalidJoinInput, Message: "invalid join input"}
	ErrUnknownColumn      = &Error{Code: ErrCodeUnknownColumn, Message: "unknown column"}
	ErrUnknownAggregation = &Error{Code: ErrCodeUnknownAggregation, Message: "unknown aggregation"}
	ErrInvalidArgument    = &Error{Code: ErrCodeInvalidArgument, Message: "invalid argument"}
	ErrEvaluation         = &Error{Code: ErrCodeEvaluation, Message: "evaluation error"}
	ErrUnknownRelation    = &Error{Code: ErrCodeUnknownRelation, Message: "unknown relation"}
	ErrRowLimit           = &Error{Code: ErrCodeRowLimit, Message: "row limit exceeded"}
)

// New creates a new Error
func New(code, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message}
}

// Errorf creates a new Error with a formatted message
func Errorf(code, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err with a code and operation.
func Wrap(err error, code, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

// NewSchemaConflict reports a duplicate output column.
func NewSchemaConflict(op, relation, column string) *Error {
	return &Error{
		Code:    ErrCodeSchemaConflict,
		Op:      op,
		Column:  column,
		Message: fmt.Sprintf("duplicate column %q in relation %q", column, relation),
	}
}

// NewInvalidJoinInput reports inputs that cannot be joined the requested way.
func NewInvalidJoinInput(op string, shared []string) *Error {
	return &Error{
		Code:    ErrCodeInvalidJoinInput,
		Op:      op,
		Message: fmt.Sprintf("inputs share attributes %v", shared),
	}
}

// NewUnknownColumn reports a reference to a column missing from a schema.
func NewUnknownColumn(op, relation, column string, available []string) *Error {
	return &Error{
		Code:    ErrCodeUnknownColumn,
		Op:      op,
		Column:  column,
		Message: fmt.Sprintf("column %q not found in relation %q (available: %s)", column, relation, strings.Join(available, ", ")),
	}
}

// NewUnknownAggregation reports an aggregation kind that has no registered factory.
func NewUnknownAggregation(op, kind string) *Error {
	return &Error{
		Code:    ErrCodeUnknownAggregation,
		Op:      op,
		Message: fmt.Sprintf("no aggregation registered for kind %q", kind),
	}
}

func NewInvalidArgument(op, format string, args ...any) *Error {
	return Errorf(ErrCodeInvalidArgument, op, format, args...)
}

// NewEvaluation wraps a failure raised while evaluating a row.
func NewEvaluation(op string, err error) *Error {
	return &Error{Code: ErrCodeEvaluation, Op: op, Message: "row evaluation failed", Err: err}
}

// NewUnknownRelation reports a plan leaf or lookup naming a relation that is
// not registered.
func NewUnknownRelation(op, name string) *Error {
	return &Error{Code: ErrCodeUnknownRelation, Op: op, Message: fmt.Sprintf("relation %q does not exist", name)}
}

// NewRowLimit reports a query that produced more rows than allowed.
func NewRowLimit(op string, limit int) *Error {
	return &Error{Code: ErrCodeRowLimit, Op: op, Message: fmt.Sprintf("query produced more than %d rows", limit)}
}

func hasCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

func IsSchemaConflict(err error) bool     { return hasCode(err, ErrCodeSchemaConflict) }
func IsInvalidJoinInput(err error) bool   { return hasCode(err, ErrCodeInvalidJoinInput) }
func IsUnknownColumn(err error) bool      { return hasCode(err, ErrCodeUnknownColumn) }
func IsUnknownAggregation(err error) bool { return hasCode(err, ErrCodeUnknownAggregation) }
func IsInvalidArgument(err error) bool    { return hasCode(err, ErrCodeInvalidArgument) }
func IsEvaluation(err error) bool         { return hasCode(err, ErrCodeEvaluation) }
func IsUnknownRelation(err error) bool    { return hasCode(err, ErrCodeUnknownRelation) }
func IsRowLimit(err error) bool           { return hasCode(err, ErrCodeRowLimit) }

// IsPlanError reports whether err is a plan-construction error, as opposed to
// a failure raised while producing rows.
func IsPlanError(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code != ErrCodeEvaluation && e.Code != ErrCodeRowLimit
}

// LogError logs an error at error level
func LogError(ctx context.Context, err error) {
	var e *Error
	if errors.As(err, &e) {
		e.Log(ctx, slog.LevelError)
		return
	}
	logger.ErrorContext(ctx, "Unexpected error occurred", "error", err.Error())
}
