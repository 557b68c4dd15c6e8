// Package testutils contains helpers shared by gridbot package tests.
package testutils

import (
	"go.uber.org/goleak"
)

// VerifyTestMain runs the package tests and fails if any goroutine outlives them. Packages that
// start periodic tasks call it from TestMain.
func VerifyTestMain(m goleak.TestingM) {
	goleak.VerifyTestMain(m)
}
