package propagation

import (
	"cmp"
	"slices"
	"sync"
)

// Kind names a collection that embeds user snapshots.
type Kind string

const (
	KindPrompt     Kind = "prompts"
	KindCollection Kind = "collections"
	KindFeedback   Kind = "feedback"
)

// Ref identifies one entity holding at least one snapshot of a user.
type Ref struct {
	Kind Kind
	ID   string
}

// Index maps a user id to the entities embedding that user. It is kept
// current from repository change events rather than rebuilt per lookup.
type Index struct {
	mu     sync.RWMutex
	byUser map[string]map[Ref]struct{}
}

func NewIndex() *Index {
	return &Index{byUser: make(map[string]map[Ref]struct{})}
}

// Track moves ref from the users embedded before a change to the users
// embedded after it.
func (x *Index) Track(ref Ref, before, after []string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, uid := range before {
		if slices.Contains(after, uid) {
			continue
		}
		if refs, ok := x.byUser[uid]; ok {
			delete(refs, ref)
			if len(refs) == 0 {
				delete(x.byUser, uid)
			}
		}
	}
	for _, uid := range after {
		refs, ok := x.byUser[uid]
		if !ok {
			refs = make(map[Ref]struct{})
			x.byUser[uid] = refs
		}
		refs[ref] = struct{}{}
	}
}

// Refs returns the entities embedding userID in a stable order.
func (x *Index) Refs(userID string) []Ref {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]Ref, 0, len(x.byUser[userID]))
	for r := range x.byUser[userID] {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Ref) int {
		return cmp.Or(cmp.Compare(a.Kind, b.Kind), cmp.Compare(a.ID, b.ID))
	})
	return out
}
