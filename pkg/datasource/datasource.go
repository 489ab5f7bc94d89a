// Connection acquisition and release against scope-bound transactions.
//
// This file is the package documentation for the datasource facade.
// The implementation is split across:
//   - factory.go: factory and connection contracts
//   - holder.go: reference-counted connection holder
//   - facade.go: Acquire/Prepare/Reset/Release operations
//   - synchronization.go: the facade's transaction cleanup callback
//   - errors.go: error definitions
package datasource
