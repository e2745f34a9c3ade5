// Package storage provides the collection-based storage abstraction for job history records.
// It defines the Storage and Collection interfaces, the query predicate language and the
// error taxonomy shared by all backends, and provides an in-memory implementation.
// Persistent backends live in the sqlite and redis subpackages.
package storage
