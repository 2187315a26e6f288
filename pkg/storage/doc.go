/*
Package storage provides BoltDB-backed persistence for colony state.

The storage package implements the Store interface using BoltDB as the
underlying database. Colony state is captured as a Snapshot (modules,
buildings, sub-modules, automation rules), serialized as JSON, and stored
in a separate bucket per entity kind:

	modules      keyed by module ID
	buildings    keyed by building ID
	submodules   keyed by sub-module ID
	rules        keyed by rule ID

SaveSnapshot replaces the stored state atomically in a single write
transaction; LoadSnapshot reads all buckets in a single view transaction.
Function-valued rule fields (custom predicates, event filters) are not
persisted and must be re-registered after a load.

# Usage

	store, err := storage.NewBoltStore("/var/lib/starhold")
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SaveSnapshot(snap); err != nil {
		return err
	}
*/
package storage
