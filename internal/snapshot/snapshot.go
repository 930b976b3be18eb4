// Package snapshot provides the "single-step simulator" tooling spec.md
// §8 describes: a deep-copied point-in-time view of the kernel's lists and
// counters (internal/core.State), plus a human-readable diff between two
// such views, both usable directly from tests.
package snapshot

import (
	"github.com/google/go-cmp/cmp"
	"github.com/huandu/go-clone"

	"github.com/philipce/yak-kernel/internal/core"
)

// Source is satisfied by *core.Kernel.
type Source interface {
	Snapshot() core.State
}

// Take captures a deep copy of k's current state. go-clone guarantees the
// returned value shares no backing arrays with a later snapshot, so two
// Take calls bracketing a kernel primitive can be diffed safely even
// though core.State's slices are, by default, shallow-copyable.
func Take(k Source) *core.State {
	s := k.Snapshot()
	return clone.Clone(&s).(*core.State)
}

// Diff renders a human-readable difference between two snapshots, or an
// empty string if they are equal. Field order in the output follows
// core.State's declaration order.
func Diff(before, after *core.State) string {
	return cmp.Diff(before, after)
}

// Equal reports whether two snapshots are identical.
func Equal(before, after *core.State) bool {
	return cmp.Equal(before, after)
}
