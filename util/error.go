// util/error.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mmp/flightmode/log"
)

// ErrorLogger is a small utility class used to log errors when validating
// parameter and scenario files. It tracks context about what is currently
// being validated and accumulates multiple errors, making it possible to
// log errors while still continuing validation. Warnings are recorded
// separately; they describe values that were replaced by defaults.
type ErrorLogger struct {
	// Tracked via Push()/Pop() calls to remember what we're looking at if
	// an error is found.
	hierarchy []string
	errors    []string
	warnings  []string
}

func (e *ErrorLogger) Push(s string) {
	e.hierarchy = append(e.hierarchy, s)
}

func (e *ErrorLogger) Pop() {
	e.hierarchy = e.hierarchy[:len(e.hierarchy)-1]
}

func (e *ErrorLogger) context(msg string) string {
	if len(e.hierarchy) == 0 {
		return msg
	}
	return strings.Join(e.hierarchy, " / ") + ": " + msg
}

func (e *ErrorLogger) ErrorString(s string, args ...any) {
	e.errors = append(e.errors, e.context(fmt.Sprintf(s, args...)))
}

func (e *ErrorLogger) Error(err error) {
	e.errors = append(e.errors, e.context(err.Error()))
}

func (e *ErrorLogger) Warning(s string, args ...any) {
	e.warnings = append(e.warnings, e.context(fmt.Sprintf(s, args...)))
}

func (e *ErrorLogger) HaveErrors() bool {
	return len(e.errors) > 0
}

func (e *ErrorLogger) Warnings() []string {
	return e.warnings
}

// Err returns nil if no errors were reported and otherwise an error that
// joins all of them.
func (e *ErrorLogger) Err() error {
	if !e.HaveErrors() {
		return nil
	}
	return errors.New(e.String())
}

// Report logs all accumulated warnings and errors.
func (e *ErrorLogger) Report(lg *log.Logger) {
	for _, w := range e.warnings {
		lg.Warn(w)
	}
	for _, err := range e.errors {
		lg.Errorf("%s", err)
	}
}

func (e *ErrorLogger) String() string {
	return strings.Join(e.errors, "\n")
}

func (e *ErrorLogger) CurrentDepth() int {
	if e == nil {
		return 0
	}
	return len(e.hierarchy)
}
