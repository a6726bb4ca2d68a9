package connstate

import "time"

// DefaultLeaveWait is max_client_leave_wait's default.
const DefaultLeaveWait = 300 * time.Second

// JoinOpTimeout is the fixed Join-wait timer duration.
const JoinOpTimeout = 45 * time.Second

// Owner is the container/document object that owns this connection's
// lifecycle. Its QuorumClients() may return (nil, false) early, before
// init_protocol has a membership set to hand back.
type Owner interface {
	ShouldClientJoinWrite() bool
	MaxClientLeaveWait() (time.Duration, bool)
	QuorumClients() (QuorumClients, bool)
}

func leaveWaitOrDefault(owner Owner) time.Duration {
	if d, ok := owner.MaxClientLeaveWait(); ok {
		return d
	}
	return DefaultLeaveWait
}
