/*
Package types defines the shared domain types for Starhold's module
lifecycle core: modules, buildings, sub-modules, effects, upgrade paths,
and automation rules.

These are plain data structures with no behavior beyond small predicate
helpers. All services (registry, status tracker, upgrade engine, automation
evaluator) operate on these types; ownership of mutable state stays with
the service that manages it.

Status vocabulary: ModuleStatus carries both the three core states
(active, constructing, inactive), which live on Module itself, and the
extended operational states (degraded, overloaded, boost, ...), which are
derived and owned by the status tracker. ModuleStatus.IsCore distinguishes
the two.
*/
package types
