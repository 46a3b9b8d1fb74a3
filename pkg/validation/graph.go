package validation

import (
	"fmt"

	coregraph "github.com/ttmouse/node-banana/internal/core/graph"
)

// IssueKind names what sanitizing dropped or repaired.
type IssueKind string

const (
	IssueDuplicateNode   IssueKind = "duplicate_node"
	IssueInvalidNode     IssueKind = "invalid_node"
	IssueDanglingEdge    IssueKind = "dangling_edge"
	IssueInvalidEdge     IssueKind = "invalid_edge"
	IssueDuplicateEdge   IssueKind = "duplicate_edge"
	IssueInvalidGroup    IssueKind = "invalid_group"
	IssueMissingGroupRef IssueKind = "missing_group_ref"
)

// Issue is one problem found while sanitizing an imported graph.
type Issue struct {
	Kind   IssueKind `json:"kind"`
	ID     string    `json:"id"`
	Reason string    `json:"reason"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s %s: %s", i.Kind, i.ID, i.Reason)
}

// SanitizeGraph returns a copy of g that satisfies the graph invariants,
// together with what had to be dropped. It is intended for graphs loaded
// from external sources where in-method guards (e.g., AddNode/AddEdge) may
// have been bypassed:
//   - nodes are deduplicated by id, keeping the first occurrence
//   - nodes with unknown types or mismatched payloads are dropped
//   - edges with missing endpoints or incompatible handles are dropped
//   - duplicate edges collapse by id
//   - group references to unknown groups are cleared
func SanitizeGraph(g *coregraph.Graph) (*coregraph.Graph, []Issue) {
	out := coregraph.New()
	if g == nil {
		return out, nil
	}
	var issues []Issue

	for id, grp := range g.Groups {
		if grp == nil || grp.ID != id {
			issues = append(issues, Issue{Kind: IssueInvalidGroup, ID: id, Reason: "group id does not match its key"})
			continue
		}
		if err := ValidateStruct(grp); err != nil {
			issues = append(issues, Issue{Kind: IssueInvalidGroup, ID: id, Reason: err.Error()})
			continue
		}
		out.Groups[id] = grp.Clone()
	}

	for _, n := range g.Nodes {
		if n == nil {
			continue
		}
		if out.Node(n.ID) != nil {
			issues = append(issues, Issue{Kind: IssueDuplicateNode, ID: n.ID, Reason: "keeping first occurrence"})
			continue
		}
		if err := ValidateStruct(n); err != nil {
			issues = append(issues, Issue{Kind: IssueInvalidNode, ID: n.ID, Reason: err.Error()})
			continue
		}
		c := n.Clone()
		if c.GroupID != "" && out.Groups[c.GroupID] == nil {
			issues = append(issues, Issue{Kind: IssueMissingGroupRef, ID: n.ID, Reason: "unknown group " + c.GroupID})
			c.GroupID = ""
		}
		if err := out.AddNode(c); err != nil {
			issues = append(issues, Issue{Kind: IssueInvalidNode, ID: n.ID, Reason: err.Error()})
		}
	}

	for _, e := range g.Edges {
		if e == nil {
			continue
		}
		if out.Node(e.Source) == nil || out.Node(e.Target) == nil {
			issues = append(issues, Issue{Kind: IssueDanglingEdge, ID: e.ID, Reason: "endpoint does not exist"})
			continue
		}
		if err := ValidateStruct(e); err != nil {
			issues = append(issues, Issue{Kind: IssueInvalidEdge, ID: e.ID, Reason: err.Error()})
			continue
		}
		added, err := out.AddEdge(e.Clone())
		if err != nil {
			issues = append(issues, Issue{Kind: IssueInvalidEdge, ID: e.ID, Reason: err.Error()})
			continue
		}
		if !added {
			issues = append(issues, Issue{Kind: IssueDuplicateEdge, ID: e.ID, Reason: "edge already present"})
		}
	}
	return out, issues
}

// GraphValidationOptions controls optional validation checks.
type GraphValidationOptions struct {
	// CheckCycles enables detection of directed cycles.
	CheckCycles bool
}

// ValidateCoreGraph reports the first invariant violation in g without
// repairing it.
func ValidateCoreGraph(g *coregraph.Graph, opts ...GraphValidationOptions) error {
	if g == nil {
		return fmt.Errorf("graph is nil")
	}
	if _, issues := SanitizeGraph(g); len(issues) > 0 {
		return fmt.Errorf("invalid graph: %s", issues[0])
	}
	var cfg GraphValidationOptions
	if len(opts) > 0 {
		cfg = opts[0]
	}
	if cfg.CheckCycles {
		if _, err := g.TopologicalOrder(); err != nil {
			return err
		}
	}
	return nil
}
