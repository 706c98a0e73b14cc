// Package stores provides the persistence layer for the engine. It includes
// SQLite-based storage with WAL mode and connection pooling for member
// snapshots and rolling update run history.
package stores
