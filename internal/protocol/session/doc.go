// Package session owns the per-connection message contract between two treesync peers.
//
// Ownership boundary:
// - hello/hello_ack handshake (participation id, protocol version, resume position)
// - delta/ack frame helpers around wire events
// - retry backoff, pending-delta outbox, transport security policy
//
// Connection lifecycle and apply ordering live in the replication package.
package session
