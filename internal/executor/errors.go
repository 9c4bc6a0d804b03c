package executor

import "errors"

// ErrUnknownStepKind — нет executor'а для данного типа шага.
var ErrUnknownStepKind = errors.New("unknown step kind")
