package errors

import sterrors "errors"

var (
	ErrCallbackRequired = sterrors.New("outputbridge: event callback is required")
	ErrBusRequired      = sterrors.New("outputbridge: transport bus is required")
	ErrConfigRequired   = sterrors.New("outputbridge: config is required")
	ErrLoggerRequired   = sterrors.New("outputbridge: logger is required")
	ErrDecodeSkipped    = sterrors.New("outputbridge: payload skipped")
)
