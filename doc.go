// Package connstate implements the client-side connection state
// machine that bookends a collaborative document client's session
// with a relay service.
//
// A client opens a long-lived connection to a relay that sequences
// ops from many clients into one totally-ordered stream. Connections
// drop and re-establish often, and on reconnect the client must not
// declare itself Connected before it is safe to do so: ops sent on
// the previous connection may still be in flight under the old
// client id. ConnectionStateCore coordinates the Join membership
// event for the new id, the Leave event for the old id, and an
// optional catch-up condition on the delta stream before promoting
// CatchingUp to Connected.
//
// The transport socket, the delta fetch pipeline, and the quorum
// (membership) subsystem are external collaborators; this package
// only specifies and consumes the contracts they present (QuorumClients,
// DeltaStream, Owner, Config, Telemetry).
package connstate
