// Package host defines what the scheduler consumes from the embedding runtime:
// a per-drain world handle and an error sink. Both are only valid on the
// host's single processing goroutine.
package host
