package connstate

// DeltaStream is the op stream CatchUpMonitor watches. It is the only
// collaborator CatchUpMonitor consumes; ConnectionStateCore never
// talks to it directly.
type DeltaStream interface {
	LastKnownSequenceNumber() uint64
	OnOp(func(sequenceNumber uint64))
}
