package main

import (
	"time"

	"github.com/relaydoc/connstate"
)

// demoOwner implements connstate.Owner for the CLI: write-ness and
// the leave-wait override are both flag-controlled, falling back to
// connstate.json's max_client_leave_wait_seconds when the flag was
// left at its default, and the quorum is handed back once the demo's
// relay simulator has built it.
type demoOwner struct {
	shouldJoinWrite bool
	leaveWait       time.Duration
	haveLeaveWait   bool
	cfg             *connstate.Config
	quorum          *memQuorum
	quorumReady     bool
}

func (o *demoOwner) ShouldClientJoinWrite() bool { return o.shouldJoinWrite }

func (o *demoOwner) MaxClientLeaveWait() (time.Duration, bool) {
	if o.haveLeaveWait {
		return o.leaveWait, true
	}
	if o.cfg != nil {
		if seconds, ok := o.cfg.MaxClientLeaveWaitSeconds(); ok {
			return time.Duration(seconds) * time.Second, true
		}
	}
	return 0, false
}

func (o *demoOwner) QuorumClients() (connstate.QuorumClients, bool) {
	if !o.quorumReady {
		return nil, false
	}
	return o.quorum, true
}
