package tech

import (
	"sync"
)

// Node is a single technology in the tree
type Node struct {
	ID          string
	Name        string
	Description string
	Unlocked    bool
}

// Service is the tech tree contract consumed by the upgrade engine.
// It is injected explicitly; consumers treat a nil Service as
// unavailable and fail requirement checks closed, reporting the
// requirement as unverified.
type Service interface {
	IsUnlocked(techID string) bool
	Node(techID string) (*Node, bool)
}

// Tree is an in-memory tech tree implementing Service
type Tree struct {
	mu    sync.RWMutex
	nodes map[string]*Node
}

// NewTree creates an empty tech tree
func NewTree() *Tree {
	return &Tree{nodes: make(map[string]*Node)}
}

// Register adds a node to the tree, replacing any existing node with the
// same ID
func (t *Tree) Register(node *Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes[node.ID] = node
}

// Unlock marks a technology as unlocked; unknown IDs are ignored
func (t *Tree) Unlock(techID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if node, ok := t.nodes[techID]; ok {
		node.Unlocked = true
	}
}

// IsUnlocked reports whether a technology is unlocked
func (t *Tree) IsUnlocked(techID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	node, ok := t.nodes[techID]
	return ok && node.Unlocked
}

// Node returns a technology node by ID
func (t *Tree) Node(techID string) (*Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	node, ok := t.nodes[techID]
	return node, ok
}
