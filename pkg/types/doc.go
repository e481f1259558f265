/*
Package types defines the value types shared across every fleetmaster
package: the supervisor, its resource-manager and node-manager clients, the
launch-context builder, and the identity registry.

# Core Types

Capability is a (MemoryMB, VCores) resource pair; Clamp bounds a requested
capability to a granted one, used when the supervisor's configured
per-container request exceeds what the cluster's capability snapshot
allows.

ContainerDescriptor carries everything the resource manager granted for one
container: ID, host, port, node ID, capability, and scheduling priority.

ContainerState mirrors the node manager's reported lifecycle state (NEW,
RUNNING, COMPLETE, FAILED). ExitStatus classifies why a container
completed (SUCCESS, DISKS_FAILED, ABORTED, OTHER); NodeAttributable reports
whether the status should be treated as evidence the node itself is bad
rather than a transient per-container failure — this is what decides
whether a replacement request may carry host affinity toward the failing
node.

ContainerCompletion is the information available when a container's
lifecycle ends, regardless of whether the resource-manager heartbeat or the
node-manager status poll observed it first.

FinalStatus is the status reported to the resource manager at unregister
(SUCCEEDED, FAILED, KILLED).

Identity is a stable logical-worker name (e.g. "worker_3"), decoupled from
any particular container currently embodying it — a replacement container
for a failed identity gets a fresh ContainerDescriptor but keeps the same
Identity, so log correlation and launch-context caching survive the
replacement.

# Design Notes

Plain exported-field structs with no getters, string-const enums declared
as a named type plus a block of constants: the same shape used throughout
this codebase for every other value type, chosen for JSON-friendliness and
because there is no invariant here that a getter would need to enforce.
*/
package types
