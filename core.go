package connstate

import (
	"fmt"

	"github.com/glycerine/idem"
)

// TransitionListener observes every connection_state_changed emission.
// reason is nil except on the Leave-timeout promotion, the
// containerSaved shortcut, on_disconnect's caller-supplied reason, and
// the CatchUpGate's "caught up" forwarding.
type TransitionListener func(newState, oldState ConnectionState, reason *string)

// CoreOptions configures NewCore. InitialClientID is provided only
// when resuming with a prior session's identifier; Clock defaults to
// SystemClock.
type CoreOptions struct {
	InitialClientID *ClientID
	Clock           Clock
}

// ConnectionStateCore is the state machine proper: it accepts
// connect/disconnect/membership events, manages the Join and Leave
// timers, and emits transitions to its registered listeners.
//
// All exported methods assume single-threaded cooperative delivery:
// callers on a threaded runtime must serialize calls into the core
// with a mutex or a single-consumer queue. The mutex held internally
// exists to protect the timers' own callback goroutines, not to make
// concurrent calls from multiple callers safe.
type ConnectionStateCore struct {
	owner     Owner
	telemetry Telemetry
	clock     Clock

	state           ConnectionState
	clientID        *ClientID
	pendingClientID *ClientID
	mode            ConnectionMode

	quorum QuorumClients

	joinOpTimer *oneShotTimer
	leaveTimer  *oneShotTimer
	waitSpan    Span

	listeners []TransitionListener

	halt *idem.Halter
}

// NewCore constructs a core in Disconnected.
func NewCore(owner Owner, telemetry Telemetry, opts CoreOptions) *ConnectionStateCore {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock
	}
	c := &ConnectionStateCore{
		owner:           owner,
		telemetry:       telemetry,
		clock:           clock,
		state:           Disconnected,
		pendingClientID: nil,
		waitSpan:        noopSpan{},
		halt:            idem.NewHalter(),
	}
	c.joinOpTimer = newOneShotTimer(clock)
	c.leaveTimer = newOneShotTimer(clock)
	if opts.InitialClientID != nil {
		id := *opts.InitialClientID
		c.clientID = &id
	}
	return c
}

// OnTransition registers a listener for connection_state_changed.
// Registering more than one is permitted (the teacher's own
// add/remove-member callbacks are likewise a slice, not a single
// slot), though the common case is exactly one: the owning container.
func (c *ConnectionStateCore) OnTransition(listener TransitionListener) {
	c.listeners = append(c.listeners, listener)
}

// ConnectionState returns the core's current state.
func (c *ConnectionStateCore) ConnectionState() ConnectionState { return c.state }

// PendingClientID returns the identifier assigned by the
// just-established transport, not yet promoted, or nil if absent.
func (c *ConnectionStateCore) PendingClientID() *ClientID { return c.pendingClientID }

// ClientID returns the identifier currently considered live for the
// outgoing op stream, or nil if absent.
func (c *ConnectionStateCore) ClientID() *ClientID { return c.clientID }

// InitProtocol registers add_member/remove_member listeners on the
// quorum. If an initial client id was supplied to NewCore and it is
// already a quorum member, the Leave-wait timer arms immediately: this
// is a resumed session whose previous client may still need to be
// seen leaving.
func (c *ConnectionStateCore) InitProtocol(quorum QuorumClients) {
	c.quorum = quorum
	quorum.OnAddMember(c.onMemberAdded)
	quorum.OnRemoveMember(c.onMemberRemoved)

	if c.clientID != nil {
		if _, ok := quorum.GetMember(*c.clientID); ok {
			c.armLeaveTimer()
		}
	}
}

// ensureQuorum adopts the owner's quorum the first time one becomes
// available, for callers that never invoke InitProtocol directly: the
// owner's QuorumClients() is allowed to report absent early and start
// answering later, once the container has finished its own setup.
func (c *ConnectionStateCore) ensureQuorum() {
	if c.quorum != nil {
		return
	}
	if quorum, ok := c.owner.QuorumClients(); ok {
		c.InitProtocol(quorum)
	}
}

// OnConnect is called by the transport layer when a socket is open
// and details.ClientID has been assigned. Precondition: current state
// is Disconnected; receiving OnConnect in any other state is a
// contract violation.
func (c *ConnectionStateCore) OnConnect(mode ConnectionMode, details ConnectDetails) {
	assertInvariant(c.state == Disconnected, "OnConnect called outside Disconnected")

	old := c.state
	c.state = CatchingUp
	id := details.ClientID
	c.pendingClientID = &id
	c.mode = mode

	assertInvariant(!c.owner.ShouldClientJoinWrite() || mode == Write,
		"ShouldClientJoinWrite true but connection is Read")
	assertInvariant(!c.leaveTimer.armed() || mode == Write,
		"leave-wait timer armed but connection is Read")

	c.emit(CatchingUp, old, nil)

	c.ensureQuorum()

	var inQuorum bool
	if c.quorum != nil {
		_, inQuorum = c.quorum.GetMember(id)
	}
	waitingForJoin := mode == Write && (c.quorum == nil || !inQuorum)

	if waitingForJoin {
		c.armJoinTimer()
		return
	}
	if c.leaveTimer.armed() {
		// the Leave (or its timeout) will drive promotion.
		return
	}
	c.setConnected(nil)
}

// OnDisconnect is called when the transport reports loss. It accepts
// being called in any state; a redundant call while already
// Disconnected is the one tolerated invariant violation in this
// package, and only logs an error diagnostic instead of asserting.
func (c *ConnectionStateCore) OnDisconnect(reason string) {
	if c.state == Disconnected {
		c.telemetry.LogConnectionIssue(EventSetConnectionStateSame, map[string]any{
			"reason": reason,
		})
		return
	}

	var hadMember bool
	if c.clientID != nil {
		_, hadMember = c.quorumGetMember(*c.clientID)
	}

	old := c.state
	c.state = Disconnected
	c.pendingClientID = nil
	c.joinOpTimer.cancelTimer()

	outstanding := c.owner.ShouldClientJoinWrite()
	shouldArm := hadMember && outstanding && !c.leaveTimer.armed()
	if shouldArm {
		c.armLeaveTimer()
	} else if !c.leaveTimer.armed() {
		c.telemetry.LogConnectionIssue(EventNoWaitOnDisconnected, map[string]any{
			"inQuorum":         hadMember,
			"waitingForLeaveOp": c.leaveTimer.armed(),
			"hadOutstandingOps": outstanding,
		})
	}
	// if the timer was already armed (carried over from a previous
	// disconnect/reconnect), it is left running untouched.

	reasonCopy := reason
	c.emit(Disconnected, old, &reasonCopy)
}

// ContainerSaved is called when the owning container reports no
// outstanding ops. If the Leave-wait timer is armed, there is nothing
// left for the old Leave to reorder, so we shortcut straight to the
// promotion gate.
func (c *ConnectionStateCore) ContainerSaved() {
	if c.leaveTimer.armed() {
		c.leaveTimer.cancelTimer()
		c.applyForConnected("containerSaved")
	}
}

// Dispose cancels the Leave-wait timer. It asserts the Join-wait
// timer is not armed: by the time a container disposes its
// connection, any in-flight connect attempt must already have
// resolved one way or the other.
func (c *ConnectionStateCore) Dispose() {
	c.leaveTimer.cancelTimer()
	assertInvariant(!c.joinOpTimer.armed(), "dispose with join_op_timer still armed")
	c.halt.ReqStop.Close()
	c.halt.Done.Close()
}

func (c *ConnectionStateCore) onMemberAdded(clientID ClientID) {
	if c.pendingClientID == nil || *c.pendingClientID != clientID {
		return
	}
	if c.joinOpTimer.armed() {
		c.joinOpTimer.cancelTimer()
	} else {
		c.telemetry.LogConnectionIssue(EventReceivedJoinOp, map[string]any{
			"pendingClientId": clientID,
		})
	}
	if c.leaveTimer.armed() {
		c.waitSpan = c.telemetry.StartSpan(EventWaitBeforeClientLeave)
	}
	c.applyForConnected("addMemberEvent")
}

func (c *ConnectionStateCore) onMemberRemoved(clientID ClientID) {
	if c.clientID == nil || *c.clientID != clientID {
		return
	}
	c.leaveTimer.cancelTimer()
	c.applyForConnected("removeMemberEvent")
}

// applyForConnected is the promotion gate.
func (c *ConnectionStateCore) applyForConnected(source string) {
	c.ensureQuorum()
	assertInvariant(c.quorum != nil, "applyForConnected with no quorum registered")

	var clientInQuorum bool
	if c.clientID != nil {
		_, clientInQuorum = c.quorum.GetMember(*c.clientID)
	}
	waitingForLeave := c.leaveTimer.armed()
	assertInvariant(!waitingForLeave || (c.clientID != nil && clientInQuorum),
		"leave-wait active but client_id absent or not in quorum")

	var pendingInQuorum bool
	if c.pendingClientID != nil {
		_, pendingInQuorum = c.quorum.GetMember(*c.pendingClientID)
	}
	pendingDiffersFromCurrent := c.pendingClientID != nil &&
		(c.clientID == nil || *c.pendingClientID != *c.clientID)

	promote := c.pendingClientID != nil &&
		pendingDiffersFromCurrent &&
		pendingInQuorum &&
		!waitingForLeave

	if promote {
		c.waitSpan.End(map[string]any{"source": source})
		c.waitSpan = noopSpan{}

		// "timeout" and "containerSaved" are shortcut promotions that
		// bypass the normal Join/Leave-ordered path, so the Connected
		// transition carries the source as its reason; a promotion
		// driven by the ordinary addMemberEvent/removeMemberEvent path
		// carries no reason.
		var reason *string
		if source == "timeout" || source == "containerSaved" {
			r := source
			reason = &r
		}
		c.setConnected(reason)
		return
	}

	category := CategoryGeneric
	if source == "timeout" {
		category = CategoryError
	}
	c.telemetry.SendTelemetryEvent(EventConnectedStateRejected, category, map[string]any{
		"source":            source,
		"pendingClientId":   c.pendingClientID,
		"clientId":          c.clientID,
		"waitingForLeaveOp": waitingForLeave,
		"inQuorum":          pendingInQuorum,
	})
}

// setConnected performs the transition to Connected.
// pendingClientID is deliberately NOT cleared here; it is cleared
// only on Disconnect. I1 (client_id != pending_client_id) is briefly
// violated right after this call, by design.
func (c *ConnectionStateCore) setConnected(reason *string) {
	assertInvariant(c.state == CatchingUp, "setConnected outside CatchingUp")

	if c.clientID != nil {
		if _, ok := c.quorum.GetMember(*c.clientID); ok {
			c.quorum.MarkShouldHaveLeft(*c.clientID)
		}
	}

	id := *c.pendingClientID
	c.clientID = &id

	old := c.state
	c.state = Connected
	c.emit(Connected, old, reason)
}

func (c *ConnectionStateCore) armJoinTimer() {
	c.joinOpTimer.arm(JoinOpTimeout, func() {
		if c.state != CatchingUp {
			return
		}
		var inQuorum bool
		if c.quorum != nil && c.pendingClientID != nil {
			_, inQuorum = c.quorum.GetMember(*c.pendingClientID)
		}
		c.telemetry.LogConnectionIssue(EventNoJoinOp, map[string]any{
			"quorumInitialized": c.quorum != nil,
			"pendingClientId":   c.pendingClientID,
			"inQuorum":          inQuorum,
			"waitingForLeaveOp": c.leaveTimer.armed(),
		})
	})
}

func (c *ConnectionStateCore) armLeaveTimer() {
	c.leaveTimer.arm(leaveWaitOrDefault(c.owner), func() {
		if c.state == Connected {
			return
		}
		c.applyForConnected("timeout")
	})
}

func (c *ConnectionStateCore) quorumGetMember(id ClientID) (Member, bool) {
	if c.quorum == nil {
		return Member{}, false
	}
	return c.quorum.GetMember(id)
}

func (c *ConnectionStateCore) emit(newState, oldState ConnectionState, reason *string) {
	assertInvariant(legalTransition(oldState, newState), fmt.Sprintf("illegal transition %v -> %v", oldState, newState))
	for _, l := range c.listeners {
		l(newState, oldState, reason)
	}
}

func assertInvariant(cond bool, msg string) {
	if !cond {
		panic(fmt.Sprintf("connstate: invariant violated: %s", msg))
	}
}
