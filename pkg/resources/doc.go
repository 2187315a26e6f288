/*
Package resources implements the colony resource ledger consumed by the
module lifecycle core.

The Service interface is what the registry, upgrade engine, sub-module
registry and automation evaluator depend on; Ledger is the in-memory
implementation used by the daemon and tests. Removing more than the
available balance fails without mutating the ledger and publishes a
resource shortage event on the bus when one is attached.
*/
package resources
