package planilha

// depNode holds the edges touching one cell. dependsOn mirrors the
// references in the cell's formula; dependents is maintained as its exact
// inverse, every edge insert and remove updates both sides.
type depNode struct {
	dependsOn  map[CellAddress]struct{}
	dependents map[CellAddress]struct{}
}

// DependencyGraph tracks cell-to-cell dependencies and produces the
// recalculation order. Range references are flattened to their component
// cells before they reach the graph, so edges are always cell-to-cell.
// The graph is acyclic at all times: the only mutation path is
// SetDependencies, which rejects any edge set that would close a cycle.
type DependencyGraph struct {
	nodes map[CellAddress]*depNode
}

// NewDependencyGraph creates an empty dependency graph
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes: make(map[CellAddress]*depNode),
	}
}

func (dg *DependencyGraph) getOrCreate(addr CellAddress) *depNode {
	if node, exists := dg.nodes[addr]; exists {
		return node
	}
	node := &depNode{
		dependsOn:  make(map[CellAddress]struct{}),
		dependents: make(map[CellAddress]struct{}),
	}
	dg.nodes[addr] = node
	return node
}

// cleanupIfEmpty drops a node once nothing points at it or from it
func (dg *DependencyGraph) cleanupIfEmpty(addr CellAddress) {
	node, exists := dg.nodes[addr]
	if !exists {
		return
	}
	if len(node.dependsOn) == 0 && len(node.dependents) == 0 {
		delete(dg.nodes, addr)
	}
}

// SetDependencies replaces the full outgoing edge set of addr in one
// transaction. The cycle check runs against the would-be graph before
// anything is touched: on rejection the graph is exactly as it was, on
// success old edges are removed and new ones inserted atomically from the
// caller's point of view.
func (dg *DependencyGraph) SetDependencies(addr CellAddress, refs map[CellAddress]struct{}) *CircularReferenceError {
	// a path from any new reference back to addr would close a cycle.
	// addr's own outgoing edges are being replaced so the walk ignores
	// them; every other node keeps its current edges.
	for ref := range refs {
		if cycle := dg.findPath(ref, addr); cycle != nil {
			full := make([]CellAddress, 0, len(cycle)+1)
			full = append(full, addr)
			full = append(full, cycle...)
			return &CircularReferenceError{Cycle: full}
		}
	}

	// commit: drop the old edge set
	if node, exists := dg.nodes[addr]; exists {
		for old := range node.dependsOn {
			delete(dg.nodes[old].dependents, addr)
			dg.cleanupIfEmpty(old)
		}
		node.dependsOn = make(map[CellAddress]struct{})
	}

	// insert the new edge set
	if len(refs) > 0 {
		node := dg.getOrCreate(addr)
		for ref := range refs {
			node.dependsOn[ref] = struct{}{}
			dg.getOrCreate(ref).dependents[addr] = struct{}{}
		}
	} else {
		dg.cleanupIfEmpty(addr)
	}

	return nil
}

// findPath walks dependsOn edges from start looking for target, skipping
// target's own outgoing edges. Returns the path start..target when found,
// nil otherwise.
func (dg *DependencyGraph) findPath(start, target CellAddress) []CellAddress {
	if start == target {
		return []CellAddress{start}
	}

	visited := make(map[CellAddress]struct{})
	var walk func(addr CellAddress, path []CellAddress) []CellAddress
	walk = func(addr CellAddress, path []CellAddress) []CellAddress {
		if _, seen := visited[addr]; seen {
			return nil
		}
		visited[addr] = struct{}{}
		path = append(path, addr)

		node, exists := dg.nodes[addr]
		if !exists {
			return nil
		}
		for next := range node.dependsOn {
			if next == target {
				return append(path, target)
			}
			if found := walk(next, path); found != nil {
				return found
			}
		}
		return nil
	}
	return walk(start, nil)
}

// DependsOn returns a copy of the cells addr directly depends on
func (dg *DependencyGraph) DependsOn(addr CellAddress) map[CellAddress]struct{} {
	node, exists := dg.nodes[addr]
	if !exists {
		return nil
	}
	result := make(map[CellAddress]struct{}, len(node.dependsOn))
	for dep := range node.dependsOn {
		result[dep] = struct{}{}
	}
	return result
}

// Dependents returns a copy of the cells directly depending on addr
func (dg *DependencyGraph) Dependents(addr CellAddress) map[CellAddress]struct{} {
	node, exists := dg.nodes[addr]
	if !exists {
		return nil
	}
	result := make(map[CellAddress]struct{}, len(node.dependents))
	for dep := range node.dependents {
		result[dep] = struct{}{}
	}
	return result
}

// HasDependents reports whether any formula still references addr
func (dg *DependencyGraph) HasDependents(addr CellAddress) bool {
	node, exists := dg.nodes[addr]
	return exists && len(node.dependents) > 0
}

// RecalcOrder returns start followed by every transitive dependent, in an
// order where a cell appears only after everything it depends on within
// the affected set. Post-order DFS over dependents, reversed.
func (dg *DependencyGraph) RecalcOrder(start CellAddress) []CellAddress {
	visited := make(map[CellAddress]struct{})
	var order []CellAddress

	var visit func(addr CellAddress)
	visit = func(addr CellAddress) {
		if _, seen := visited[addr]; seen {
			return
		}
		visited[addr] = struct{}{}

		if node, exists := dg.nodes[addr]; exists {
			for dependent := range node.dependents {
				visit(dependent)
			}
		}
		order = append(order, addr)
	}
	visit(start)

	// reverse the post-order so dependencies come first
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// Order returns every node in dependency order, precedents before
// dependents. The graph is acyclic by construction so the walk always
// terminates.
func (dg *DependencyGraph) Order() []CellAddress {
	visited := make(map[CellAddress]struct{})
	var order []CellAddress

	var visit func(addr CellAddress)
	visit = func(addr CellAddress) {
		if _, seen := visited[addr]; seen {
			return
		}
		visited[addr] = struct{}{}

		if node, exists := dg.nodes[addr]; exists {
			for precedent := range node.dependsOn {
				visit(precedent)
			}
		}
		order = append(order, addr)
	}

	for addr := range dg.nodes {
		visit(addr)
	}
	return order
}

// NodeCount returns the number of nodes carrying edges
func (dg *DependencyGraph) NodeCount() int {
	return len(dg.nodes)
}
