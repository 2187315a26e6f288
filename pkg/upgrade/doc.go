/*
Package upgrade implements the timed upgrade engine: per-module-type
upgrade paths, ordered requirement validation, and in-flight upgrade
operations with cancellable completion timers.

A module moves idle -> upgrading -> idle; completion raises the level by
exactly one and applies the level's effects through the wired Applier,
cancellation clears the timer with no level change. Resources are
debited when the upgrade starts and are not refunded on cancellation.

Requirement checks run in order: minimum level, resource affordability,
tech unlocks, module co-requirements, attached-building level. The tech
service is an injected dependency; when it is unavailable the check
fails closed and the requirement is reported as unverified.
*/
package upgrade
