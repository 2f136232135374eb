package schedule

import "errors"

// ErrConfigInvalid is returned when a module configuration cannot be read,
// fails schema validation, or breaks a semantic rule (missing rule, bad
// time string, duplicate node). The wrapped error lists every problem.
var ErrConfigInvalid = errors.New("schedule: configuration invalid")
