//go:build !debug

// Package debug provides assertions that compile to no-ops in release
// builds (build with -tags debug to enable them).
package debug

func ON() bool { return false }

func Assert(_ bool, _ ...any)            {}
func AssertFunc(_ func() bool, _ ...any) {}
func AssertNoErr(_ error)                {}
func Assertf(_ bool, _ string, _ ...any) {}
func Func(_ func())                      {}
