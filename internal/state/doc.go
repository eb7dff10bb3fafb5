// Package state is the staged state and cache kernel of the simulation
// library. A [State] holds everything time-varying that a simulated
// system needs: continuous variables y={q,u,z} and time, discrete
// variables, constraint errors and Lagrange multipliers, event witness
// slots, and derived cache entries, partitioned per subsystem.
//
// Every resource is gated by a [Stage]. Subsystems advance one stage at a
// time during realization; writing a variable backs the affected stages
// up and conservatively invalidates all cache at or above the written
// variable's stage. The kernel tracks stage granularity only, never
// per-variable dependency edges.
//
//   - Continuous variables are requested below Model and pooled globally
//     when the system advances to Model.
//   - Constraint errors, multipliers and event triggers are requested
//     below Instance and pooled at Instance.
//   - Discrete variables and cache entries are allocated immediately and
//     forgotten if the State backs up to their allocation stage.
//
// Derived quantities follow the lazy protocol documented on
// [State.AllocateCacheEntry].
//
// # Thread Safety
//
// A State has no internal locking. Concurrent callers may fill disjoint
// cache slots through read-only views but must synchronize before
// reading a slot written by another goroutine.
package state
