package validation

import (
	"testing"

	"github.com/google/uuid"

	"github.com/cqm/cqm/internal/domain/measure"
	"github.com/cqm/cqm/internal/domain/patient"
)

func testPatientWithEncounter(code string) *patient.TestPatient {
	return &patient.TestPatient{
		BirthDate:  date(1980, 3, 10),
		Gender:     "female",
		Encounters: []patient.Fact{fact(code, "", date(2025, 6, 15))},
	}
}

func encounterElement(code string) *measure.DataElement {
	return &measure.DataElement{
		ID:   uuid.New(),
		Type: measure.ElementEncounter,
		ValueSet: measure.ValueSet{
			Codings: []measure.Coding{{Code: code}},
		},
	}
}

// OR clause with 3 encounter children where the patient matches exactly one.
func TestEvaluateClause_OrWithOneMatch(t *testing.T) {
	cl := &measure.LogicalClause{
		ID:       uuid.New(),
		Operator: measure.OpOr,
		Children: []measure.CriteriaNode{
			measure.ElementNode(encounterElement("99213")),
			measure.ElementNode(encounterElement("99214")),
			measure.ElementNode(encounterElement("99215")),
		},
	}
	pt := testPatientWithEncounter("99214")

	node := EvaluateClause(cl, pt, mp2025())
	if !node.Met {
		t.Error("OR with one matching child should be met")
	}
	if node.Count == nil || node.Count.Met != 1 || node.Count.Total != 3 {
		t.Errorf("expected match count {1,3}, got %+v", node.Count)
	}
}

func TestEvaluateClause_AndRequiresAll(t *testing.T) {
	cl := &measure.LogicalClause{
		ID:       uuid.New(),
		Operator: measure.OpAnd,
		Children: []measure.CriteriaNode{
			measure.ElementNode(encounterElement("99213")),
			measure.ElementNode(encounterElement("99214")),
		},
	}
	pt := testPatientWithEncounter("99214")

	node := EvaluateClause(cl, pt, mp2025())
	if node.Met {
		t.Error("AND with a failing child should not be met")
	}
	if node.Status != StatusPartial {
		t.Errorf("failing AND with one passing child should be partial, got %s", node.Status)
	}
}

// The output tree must mirror the input tree: same shape, same child order,
// and one leaf node per data element, even when the boolean result is
// settled early.
func TestEvaluateClause_IsomorphicNoShortCircuit(t *testing.T) {
	inner := &measure.LogicalClause{
		ID:       uuid.New(),
		Operator: measure.OpAnd,
		Children: []measure.CriteriaNode{
			measure.ElementNode(encounterElement("11111")),
			measure.ElementNode(encounterElement("22222")),
		},
	}
	cl := &measure.LogicalClause{
		ID:       uuid.New(),
		Operator: measure.OpOr,
		Children: []measure.CriteriaNode{
			// First child matches: a short-circuiting OR would stop here.
			measure.ElementNode(encounterElement("99214")),
			measure.ElementNode(encounterElement("33333")),
			measure.ClauseNode(inner),
		},
	}
	pt := testPatientWithEncounter("99214")

	node := EvaluateClause(cl, pt, mp2025())
	if !node.Met {
		t.Fatal("expected OR to be met")
	}
	if len(node.Children) != 3 {
		t.Fatalf("all 3 children must be represented, got %d", len(node.Children))
	}
	if node.Children[2].Kind != measure.KindClause {
		t.Error("third child should remain a group node")
	}
	if len(node.Children[2].Children) != 2 {
		t.Errorf("nested clause must keep its 2 leaves, got %d", len(node.Children[2].Children))
	}
	if leafCount(node) != 4 {
		t.Errorf("expected 4 leaf nodes for 4 data elements, got %d", leafCount(node))
	}
}

func leafCount(n *ValidationNode) int {
	if n.Kind == measure.KindElement {
		return 1
	}
	total := 0
	for _, c := range n.Children {
		total += leafCount(c)
	}
	return total
}

func TestEvaluateClause_NotSingleChild(t *testing.T) {
	cl := &measure.LogicalClause{
		ID:       uuid.New(),
		Operator: measure.OpNot,
		Children: []measure.CriteriaNode{
			measure.ElementNode(encounterElement("99214")),
		},
	}

	if node := EvaluateClause(cl, testPatientWithEncounter("99214"), mp2025()); node.Met {
		t.Error("NOT over a met child should not be met")
	}
	if node := EvaluateClause(cl, testPatientWithEncounter("11111"), mp2025()); !node.Met {
		t.Error("NOT over an unmet child should be met")
	}
}

func TestEvaluateClause_NotManyChildrenFallback(t *testing.T) {
	cl := &measure.LogicalClause{
		ID:       uuid.New(),
		Operator: measure.OpNot,
		Children: []measure.CriteriaNode{
			measure.ElementNode(encounterElement("99213")),
			measure.ElementNode(encounterElement("99214")),
		},
	}
	pt := testPatientWithEncounter("99214")

	// NOT(OR(children)): one child matches, so the clause is not met.
	node := EvaluateClause(cl, pt, mp2025())
	if node.Met {
		t.Error("NOT(OR) with a matching child should not be met")
	}
	if len(node.Notes) == 0 {
		t.Error("the multi-child NOT fallback should be noted on the node")
	}

	none := testPatientWithEncounter("55555")
	if node := EvaluateClause(cl, none, mp2025()); !node.Met {
		t.Error("NOT(OR) with no matching children should be met")
	}
}

// Pair operators override the clause operator between specific siblings:
// a AND b OR c evaluated as a left fold.
func TestEvaluateClause_PairOperatorOverrides(t *testing.T) {
	cl := &measure.LogicalClause{
		ID:       uuid.New(),
		Operator: measure.OpAnd,
		Children: []measure.CriteriaNode{
			measure.ElementNode(encounterElement("11111")), // fail
			measure.ElementNode(encounterElement("22222")), // fail
			measure.ElementNode(encounterElement("99214")), // pass
		},
		PairOperators: []measure.Operator{measure.OpAnd, measure.OpOr},
	}
	pt := testPatientWithEncounter("99214")

	// (fail AND fail) OR pass = true; the plain AND would be false.
	node := EvaluateClause(cl, pt, mp2025())
	if !node.Met {
		t.Error("pair override should turn the final combination into OR")
	}
}

func TestEvaluateClause_EmptyClause(t *testing.T) {
	cl := &measure.LogicalClause{ID: uuid.New(), Operator: measure.OpAnd}
	node := EvaluateClause(cl, testPatientWithEncounter("99214"), mp2025())
	if node.Met {
		t.Error("an empty clause is never met")
	}
	if node.Status != StatusNotEvaluated {
		t.Errorf("expected not_evaluated for an empty clause, got %s", node.Status)
	}
	if len(node.Notes) == 0 {
		t.Error("the malformed clause should be noted, not raised")
	}
}

func TestEvaluateClause_ChildOrderPreserved(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	cl := &measure.LogicalClause{
		ID:       uuid.New(),
		Operator: measure.OpOr,
		Children: []measure.CriteriaNode{
			measure.ElementNode(&measure.DataElement{ID: ids[0], Type: measure.ElementEncounter}),
			measure.ElementNode(&measure.DataElement{ID: ids[1], Type: measure.ElementEncounter}),
			measure.ElementNode(&measure.DataElement{ID: ids[2], Type: measure.ElementEncounter}),
		},
	}
	node := EvaluateClause(cl, testPatientWithEncounter("99214"), mp2025())
	for i, want := range ids {
		if node.Children[i].ID != want {
			t.Errorf("child %d: expected id %s, got %s", i, want, node.Children[i].ID)
		}
	}
}
