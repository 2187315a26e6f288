/*
Package registry implements the module and building registry: the source
of truth for module existence and identity.

The registry handles module creation from registered configs, attachment
into building attachment points, the fully validated single-level upgrade
path, and activation toggling. All lifecycle changes publish events on
the bus; downstream services (status tracker, upgrade engine, sub-module
registry, automation) key off module IDs issued here.

Error model: CreateModule returns an error for an unregistered type (a
configuration error); every other mutator reports failure by boolean
with no side effects on the failing path. Queries never fail; unknown
IDs yield zero values or empty slices.

Invariants maintained here:

  - a module's level only increases
  - IsActive is true iff Status == active
  - a module occupies at most one attachment point at a time
*/
package registry
