package core

import "sync/atomic"

// Identifier hands out process-unique ids. Ids are never recycled so that a
// stale id held by a lookup table can not alias a newer object.
type Identifier struct {
	next atomic.Uint64
}

func NewIdentifier() *Identifier {
	return &Identifier{}
}

// AquireNewID returns the next id. The first id is 1, 0 is reserved as invalid.
func (i *Identifier) AquireNewID() uint64 {
	return i.next.Add(1)
}

// Current returns the last id handed out.
func (i *Identifier) Current() uint64 {
	return i.next.Load()
}
