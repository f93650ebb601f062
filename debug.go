//go:build stockroomdebug

package stockroom

import "github.com/rotisserie/eris"

const debugChecks = true

func invariant(cond bool, format string, args ...any) {
	if !cond {
		panic(eris.Errorf("stockroom: invariant violated: "+format, args...))
	}
}
