package library

// ChangeSet is the unit of atomic commit for the node store.
// Engines buffer every insert, update and delete here and hand the
// finished set to the repository; either all of it becomes visible or none.
type ChangeSet struct {
	Inserts []Node
	Updates []Node
	Deletes []string

	// Expect maps node id -> version that must still be current at commit.
	// A mismatch (or a missing node) fails the commit with ErrConflict.
	Expect map[string]int64

	updateIdx map[string]int
}

// Insert stages a new node with version 1
func (cs *ChangeSet) Insert(n Node) {
	n.Version = 1
	cs.Inserts = append(cs.Inserts, n)
}

// Update stages a modified node. The node's current version is recorded as
// the expected version and the staged copy gets version+1. Updating the same
// id twice replaces the staged copy and keeps the first expectation.
func (cs *ChangeSet) Update(n Node) {
	if cs.updateIdx == nil {
		cs.updateIdx = make(map[string]int)
	}
	if i, ok := cs.updateIdx[n.ID]; ok {
		n.Version = cs.Updates[i].Version
		cs.Updates[i] = n
		return
	}
	cs.require(n.ID, n.Version)
	n.Version++
	cs.updateIdx[n.ID] = len(cs.Updates)
	cs.Updates = append(cs.Updates, n)
}

// Delete stages removal of a node, expecting it unchanged since it was read
func (cs *ChangeSet) Delete(n Node) {
	cs.require(n.ID, n.Version)
	cs.Deletes = append(cs.Deletes, n.ID)
}

// Require records that n must be unchanged at commit without modifying it
func (cs *ChangeSet) Require(n Node) {
	cs.require(n.ID, n.Version)
}

// Updated returns the staged copy of an updated node
func (cs *ChangeSet) Updated(id string) (Node, bool) {
	i, ok := cs.updateIdx[id]
	if !ok {
		return Node{}, false
	}
	return cs.Updates[i], true
}

// IsEmpty reports whether the change set writes nothing
func (cs *ChangeSet) IsEmpty() bool {
	return len(cs.Inserts) == 0 && len(cs.Updates) == 0 && len(cs.Deletes) == 0
}

// Size is the number of rows the change set writes
func (cs *ChangeSet) Size() int {
	return len(cs.Inserts) + len(cs.Updates) + len(cs.Deletes)
}

func (cs *ChangeSet) require(id string, version int64) {
	if cs.Expect == nil {
		cs.Expect = make(map[string]int64)
	}
	if _, ok := cs.Expect[id]; !ok {
		cs.Expect[id] = version
	}
}
