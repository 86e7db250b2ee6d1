// Package types defines the trip-planning entities (User, Trip, PlanVersion,
// ChatMessage), their closed enumerations and field invariants, the trip and
// plan state machines, the Store interface, and the error taxonomy shared by
// every backend.
//
// Deletion policy is deliberately asymmetric: deleting a Trip cascades to its
// PlanVersions, but ChatMessages only hold a weak reference to their trip and
// block the delete (ErrDependentData) unless a PurgeMode is chosen.
package types
