package connstate

// Member is the quorum's view of a single client id.
type Member struct {
	ClientID ClientID

	// ShouldHaveLeft is a hint to the quorum that any future op
	// bearing this id is stale; the core sets it exactly once, at
	// the moment it promotes a new client id to Connected.
	ShouldHaveLeft bool
}

// AddMemberFunc and RemoveMemberFunc are the typed listener shapes
// QuorumClients delivers Join/Leave events through. There is no
// reflection or string-keyed dispatch across this boundary.
type AddMemberFunc func(clientID ClientID)
type RemoveMemberFunc func(clientID ClientID)

// QuorumClients is the membership set maintained by the relay via
// Join and Leave ops embedded in the op stream. It is read-only from
// the core's perspective except for MarkShouldHaveLeft, which the
// core calls exactly once per promotion.
type QuorumClients interface {
	GetMember(clientID ClientID) (Member, bool)
	OnAddMember(AddMemberFunc)
	OnRemoveMember(RemoveMemberFunc)
	MarkShouldHaveLeft(clientID ClientID)
}
