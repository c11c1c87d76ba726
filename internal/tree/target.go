package tree

import "fmt"

// Target is one reference entry: a target id, a resolve-info hint, or both.
type Target struct {
	ID          NodeID
	ResolveInfo string
}

// Valid reports whether at least one half of the target is present.
func (t Target) Valid() bool {
	return t.ID != "" || t.ResolveInfo != ""
}

func (t Target) String() string {
	return fmt.Sprintf("%s(%q)", t.ID, t.ResolveInfo)
}

// To builds a target pointing at node n, using resolveInfo as the hint.
func To(n *Node, resolveInfo string) Target {
	return Target{ID: n.ID(), ResolveInfo: resolveInfo}
}
