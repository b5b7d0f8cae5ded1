package environment

// BudID identifies a bud. IDs are dense and handed out in creation order
// starting at 0, so they can index per-iteration scratch slices directly.
type BudID int

// A sequential bud id generator.
//
// It is passed explicitly to every call that creates a bud. IDs are never
// reused: a pruned bud keeps its id.
type BudIDGenerator struct {
	next BudID
}

// New returns the next bud id.
func (g *BudIDGenerator) New() BudID {
	id := g.next
	g.next++
	return id
}

// Count returns how many ids were handed out.
func (g *BudIDGenerator) Count() int {
	return int(g.next)
}
