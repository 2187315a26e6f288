/*
Package submodule implements the sub-module registry: attachable augments
that grant numeric effects to their parent module while active.

Creation and attachment enforce the parent's capacity and type allow-list
plus the sub-module config's own requirements (parent level, parent type,
resource costs, incompatibilities). Activation is gated on the parent
being active; effects go live through a pluggable dispatch table of
EffectHandlers keyed by effect type. Every applied effect records its
exact stat delta, and deactivation reverses those deltas, so repeated
activate/deactivate cycles are lossless.

The registry subscribes to parent lifecycle events and cascades them:
upgrading a parent reapplies its active sub-modules' effects, activating
a parent brings its sub-modules up in lockstep, and deactivating a parent
force-deactivates all of them.
*/
package submodule
