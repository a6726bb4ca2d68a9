package connstate

import "time"

// fakeQuorum is a minimal in-memory QuorumClients for tests: no
// ordering, no persistence, just enough to drive add/remove-member
// events and answer GetMember.
type fakeQuorum struct {
	members  map[ClientID]*Member
	onAdd    []AddMemberFunc
	onRemove []RemoveMemberFunc
}

func newFakeQuorum() *fakeQuorum {
	return &fakeQuorum{members: make(map[ClientID]*Member)}
}

func (q *fakeQuorum) GetMember(id ClientID) (Member, bool) {
	m, ok := q.members[id]
	if !ok {
		return Member{}, false
	}
	return *m, true
}

func (q *fakeQuorum) OnAddMember(f AddMemberFunc)       { q.onAdd = append(q.onAdd, f) }
func (q *fakeQuorum) OnRemoveMember(f RemoveMemberFunc) { q.onRemove = append(q.onRemove, f) }

func (q *fakeQuorum) MarkShouldHaveLeft(id ClientID) {
	if m, ok := q.members[id]; ok {
		m.ShouldHaveLeft = true
	}
}

// join admits id to the quorum and fires add-member listeners, as the
// relay does on a sequenced Join op.
func (q *fakeQuorum) join(id ClientID) {
	q.members[id] = &Member{ClientID: id}
	for _, f := range q.onAdd {
		f(id)
	}
}

// leave removes id from the quorum and fires remove-member listeners,
// as the relay does on a sequenced Leave op.
func (q *fakeQuorum) leave(id ClientID) {
	delete(q.members, id)
	for _, f := range q.onRemove {
		f(id)
	}
}

// fakeOwner implements Owner with fields a test can flip directly.
type fakeOwner struct {
	shouldJoinWrite bool
	leaveWait       time.Duration
	haveLeaveWait   bool
	quorum          QuorumClients
	haveQuorum      bool
}

func (o *fakeOwner) ShouldClientJoinWrite() bool { return o.shouldJoinWrite }

func (o *fakeOwner) MaxClientLeaveWait() (time.Duration, bool) {
	if o.haveLeaveWait {
		return o.leaveWait, true
	}
	return 0, false
}

func (o *fakeOwner) QuorumClients() (QuorumClients, bool) {
	if !o.haveQuorum {
		return nil, false
	}
	return o.quorum, true
}

// fakeSpan records whether it was ended and with what details.
type fakeSpan struct {
	ended   bool
	details map[string]any
}

func (s *fakeSpan) End(details map[string]any) {
	s.ended = true
	s.details = details
}

// fakeTelemetry records every call instead of logging it, so tests
// can assert on exactly which diagnostics fired.
type fakeTelemetry struct {
	issues  []fakeIssue
	events  []fakeEvent
	spans   []*fakeSpan
}

type fakeIssue struct {
	event   string
	details map[string]any
}

type fakeEvent struct {
	event    string
	category string
	details  map[string]any
}

func (t *fakeTelemetry) LogConnectionIssue(event string, details map[string]any) {
	t.issues = append(t.issues, fakeIssue{event, details})
}

func (t *fakeTelemetry) SendTelemetryEvent(event, category string, details map[string]any) {
	t.events = append(t.events, fakeEvent{event, category, details})
}

func (t *fakeTelemetry) StartSpan(name string) Span {
	s := &fakeSpan{}
	t.spans = append(t.spans, s)
	return s
}

func (t *fakeTelemetry) hasIssue(event string) bool {
	for _, i := range t.issues {
		if i.event == event {
			return true
		}
	}
	return false
}

func (t *fakeTelemetry) hasEvent(event string) bool {
	for _, e := range t.events {
		if e.event == event {
			return true
		}
	}
	return false
}

// recordedTransition is one emission captured by a test's
// TransitionListener.
type recordedTransition struct {
	newState ConnectionState
	oldState ConnectionState
	reason   *string
}

func recordTransitions() (*[]recordedTransition, TransitionListener) {
	var out []recordedTransition
	return &out, func(newState, oldState ConnectionState, reason *string) {
		out = append(out, recordedTransition{newState, oldState, reason})
	}
}
