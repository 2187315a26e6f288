package storage

import (
	"github.com/orbitalworks/starhold/pkg/types"
)

// Snapshot is the persistable colony state. Function-valued rule fields
// (custom predicates, event filters) are dropped on save.
type Snapshot struct {
	Modules    []*types.Module
	Buildings  []*types.Building
	SubModules []*types.SubModule
	Rules      []*types.Rule
}

// Store defines the interface for colony state persistence
type Store interface {
	SaveSnapshot(snap *Snapshot) error
	LoadSnapshot() (*Snapshot, error)
	Close() error
}
