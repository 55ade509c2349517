package db

import "errors"

// ErrRetryBudgetExhausted is returned when a session's video retry cap has
// been reached or a retry is already pending.
var ErrRetryBudgetExhausted = errors.New("video retry budget exhausted")
