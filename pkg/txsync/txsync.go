// Transactional resource binding and synchronization.
//
// This file is the package documentation for the transaction core.
// The implementation is split across:
//   - holder.go: reference-counted resource holder base
//   - scope.go: per-transaction resource registry and phase drivers
//   - synchronization.go: lifecycle callback contract
//   - definition.go: transaction definition and isolation levels
//   - errors.go: sentinel error definitions
//
// A Scope is owned by exactly one logical goroutine at a time. Ownership
// may be handed off sequentially (suspend/resume, completion on another
// goroutine) but never shared concurrently, so Scope performs no locking.
package txsync
