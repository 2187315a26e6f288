/*
Package automation implements the rule evaluator: user-defined
condition/action pairs that operate modules autonomously.

While enabled, a fixed-interval loop (default 1s) evaluates every
enabled non-event-based rule (resource thresholds, time windows, status
triggers, and custom predicates) and executes the action of each rule
whose predicate holds and which is off cooldown. Event-based rules skip
the loop entirely: each one holds a dedicated bus subscription for its
event type, with an optional filter applied before the action runs.

A rule fires at most once per cooldown window, measured from its own
last trigger; the stamp is written after the action executes, so
cooldown counts from fires, not evaluation attempts. Enabling and
disabling automation derives and tears down the loop and all event
subscriptions from the current rule set; every subscription keeps its
unsubscribe handle from registration time.
*/
package automation
