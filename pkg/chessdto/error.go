package chessdto

import (
	"context"
	"errors"

	"github.com/park285/cheese-engine/internal/board"
	"github.com/park285/cheese-engine/internal/chess"
	"github.com/park285/cheese-engine/internal/search"
)

const (
	CodeUnknownPreset   = "unknown_preset"
	CodeInvalidPosition = "invalid_position"
	CodeEngineBusy      = "engine_busy"
	CodeInconsistent    = "oracle_inconsistent"
	CodeCancelled       = "cancelled"
	CodeInternal        = "internal"
)

type DomainError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "chess engine error"
}

// ErrorOf classifies an engine error. nil maps to nil.
func ErrorOf(err error) *DomainError {
	if err == nil {
		return nil
	}
	var de DomainError
	if errors.As(err, &de) {
		return &de
	}
	out := &DomainError{Code: CodeInternal, Message: err.Error()}
	switch {
	case errors.Is(err, chess.ErrUnknownPreset):
		out.Code = CodeUnknownPreset
	case errors.Is(err, board.ErrInvalidPosition):
		out.Code = CodeInvalidPosition
	case errors.Is(err, chess.ErrEngineBusy):
		out.Code = CodeEngineBusy
		out.Retryable = true
	case errors.Is(err, search.ErrOracleInconsistent):
		out.Code = CodeInconsistent
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		out.Code = CodeCancelled
		out.Retryable = true
	}
	return out
}
