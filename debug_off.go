//go:build !stockroomdebug

package stockroom

const debugChecks = false

func invariant(bool, string, ...any) {}
