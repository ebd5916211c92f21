// Package internal contains the building blocks of the transactional
// memory engine: the global version clock, the versioned write locks, the
// lock stripe table and the per-transaction read/write sets.
//
// Everything in this package is deliberately small and allocation-light;
// the locking and validation paths run once per shared word accessed, so
// each type boils down to one atomic word or one map. The transaction
// protocol that ties these pieces together lives in the parent tm package.
package internal
