package validation

import (
	"github.com/cqm/cqm/internal/domain/measure"
	"github.com/cqm/cqm/internal/domain/patient"
)

// EvaluateClause recursively evaluates a criteria clause and returns a node
// tree structurally isomorphic to the input: same shape, same child order.
//
// Every child is always visited and represented in the output, even when the
// boolean result is already determined, so reviewers see the complete audit
// picture. The boolean is derived only after the fold over all children.
func EvaluateClause(cl *measure.LogicalClause, pt *patient.TestPatient, period measure.Period) *ValidationNode {
	node := &ValidationNode{
		ID:       cl.ID,
		Label:    cl.Label,
		Kind:     measure.KindClause,
		Operator: cl.Operator,
	}

	if len(cl.Children) == 0 {
		// Malformed tree: absorbed into the node status, never raised.
		node.Status = StatusNotEvaluated
		node.Notes = append(node.Notes, "clause has no children")
		node.Count = &MatchCount{}
		return node
	}

	for i := range cl.Children {
		child := &cl.Children[i]
		switch child.Kind {
		case measure.KindClause:
			node.Children = append(node.Children, EvaluateClause(child.Clause, pt, period))
		case measure.KindElement:
			node.Children = append(node.Children, MatchElement(child.Element, pt, period))
		default:
			bad := &ValidationNode{Kind: child.Kind, Status: StatusNotEvaluated}
			bad.Notes = append(bad.Notes, "unknown criteria node kind")
			node.Children = append(node.Children, bad)
		}
	}

	met := 0
	for _, c := range node.Children {
		if c.Met {
			met++
		}
	}
	node.Count = &MatchCount{Met: met, Total: len(node.Children)}

	switch cl.Operator {
	case measure.OpNot:
		if len(node.Children) == 1 {
			node.Met = !node.Children[0].Met
		} else {
			// Documented fallback: NOT over several children negates their OR.
			node.Met = met == 0
			node.Notes = append(node.Notes, "NOT clause with multiple children treated as NOT(OR(children))")
		}
	default:
		node.Met = foldChildren(cl, node.Children)
	}

	node.Status = StatusFail
	if node.Met {
		node.Status = StatusPass
	} else if met > 0 {
		node.Status = StatusPartial
	}
	return node
}

// foldChildren combines child results left to right. The operator between
// each adjacent pair defaults to the clause operator unless overridden for
// that specific pair. All children have already been evaluated; the fold only
// derives the boolean.
func foldChildren(cl *measure.LogicalClause, children []*ValidationNode) bool {
	result := children[0].Met
	for i := 1; i < len(children); i++ {
		op := cl.Operator
		if len(cl.PairOperators) == len(children)-1 {
			op = cl.PairOperators[i-1]
		}
		switch op {
		case measure.OpOr:
			result = result || children[i].Met
		default:
			result = result && children[i].Met
		}
	}
	return result
}
