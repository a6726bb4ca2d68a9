package main

import (
	"cmp"

	rb "github.com/glycerine/rbtree"

	"github.com/relaydoc/connstate"
)

// memberEntry is the red-black tree's stored item, ordered by the
// sequence number the entry joined at: the same "order members by
// join sequence" idiom tube/sess.go's sessTableByExpiry applies to
// session expiry instead.
type memberEntry struct {
	seq int64
	m   connstate.Member
}

// memQuorum is an in-memory QuorumClients backed by a red-black tree
// (github.com/glycerine/rbtree), so the demo can print "who is still
// pending Leave" in join order without a separate sort pass.
type memQuorum struct {
	tree    *rb.Tree
	byID    map[connstate.ClientID]*memberEntry
	nextSeq int64

	onAdd    []connstate.AddMemberFunc
	onRemove []connstate.RemoveMemberFunc
}

func newMemQuorum() *memQuorum {
	return &memQuorum{
		tree: rb.NewTree(func(a, b rb.Item) int {
			return cmp.Compare(a.(*memberEntry).seq, b.(*memberEntry).seq)
		}),
		byID: make(map[connstate.ClientID]*memberEntry),
	}
}

func (q *memQuorum) GetMember(clientID connstate.ClientID) (connstate.Member, bool) {
	e, ok := q.byID[clientID]
	if !ok {
		return connstate.Member{}, false
	}
	return e.m, true
}

func (q *memQuorum) OnAddMember(f connstate.AddMemberFunc)       { q.onAdd = append(q.onAdd, f) }
func (q *memQuorum) OnRemoveMember(f connstate.RemoveMemberFunc) { q.onRemove = append(q.onRemove, f) }

func (q *memQuorum) MarkShouldHaveLeft(clientID connstate.ClientID) {
	if e, ok := q.byID[clientID]; ok {
		e.m.ShouldHaveLeft = true
	}
}

// join admits clientID: it is the relay simulator's side of a Join op,
// inserted into the tree and fanned out to every OnAddMember listener.
func (q *memQuorum) join(clientID connstate.ClientID) {
	e := &memberEntry{seq: q.nextSeq, m: connstate.Member{ClientID: clientID}}
	q.nextSeq++
	q.byID[clientID] = e
	q.tree.InsertGetIt(e)
	for _, f := range q.onAdd {
		f(clientID)
	}
}

// leave removes clientID: the relay simulator's side of a Leave op.
func (q *memQuorum) leave(clientID connstate.ClientID) {
	e, ok := q.byID[clientID]
	if !ok {
		return
	}
	if it, found := q.tree.FindGE_isEqual(e); found {
		q.tree.DeleteWithIterator(it)
	}
	delete(q.byID, clientID)
	for _, f := range q.onRemove {
		f(clientID)
	}
}

// pendingLeaves lists members marked ShouldHaveLeft, oldest join first.
func (q *memQuorum) pendingLeaves() []connstate.ClientID {
	var out []connstate.ClientID
	for it := q.tree.Min(); !it.Limit(); it = it.Next() {
		e := it.Item().(*memberEntry)
		if e.m.ShouldHaveLeft {
			out = append(out, e.m.ClientID)
		}
	}
	return out
}
