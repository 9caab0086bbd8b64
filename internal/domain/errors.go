package domain

import "errors"

// Evaluation errors. Callers wrap these with context and match with errors.Is.
var (
	// ErrData reports a malformed or insufficient price series.
	ErrData = errors.New("data error")
	// ErrInvalidParameter reports a parameter vector a strategy cannot accept.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrNoPriorResult is returned when a report is requested before any evaluation.
	ErrNoPriorResult = errors.New("no prior result")
)
