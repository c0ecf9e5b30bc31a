// Package must wraps invariant checks that should abort the owning actor
// rather than propagate as an error. Use it only for programmer errors —
// mismatched bitstream lengths, negative offsets — never for capacity or
// corruption conditions, which return ordinary errors.
package must

import (
	"fmt"
	"log/slog"
)

// Assert panics if ok is false. Reserved for invariant violations that are
// fatal to the owning actor (spec §7 "Invariant violation").
func Assert(ok bool) func(msg ...any) {
	return func(msg ...any) {
		if !ok {
			slog.Error(fmt.Sprint(msg...))
			panic(fmt.Sprint(msg...))
		}
	}
}
