// Package cache implements the optimistic in-memory repository every entity
// collection is built on: local state changes first, the remote write runs in
// the background, and a failed write is reverted or kept according to the
// operation's Policy entry.
package cache

// Entity is implemented by the model types held in a Repository.
type Entity[T any] interface {
	Key() string
	WithKey(id string) T
	Clone() T
}

// Operation names a kind of mirrored write.
type Operation string

const (
	OpCreate     Operation = "create"
	OpUpdate     Operation = "update"
	OpStatus     Operation = "status"
	OpDelete     Operation = "delete"
	OpVote       Operation = "vote"
	OpComment    Operation = "comment"
	OpPromoUsage Operation = "promo-usage"
	OpPropagate  Operation = "propagate"
)

// Policy maps an operation to whether a failed remote write reverts the
// local change. Operations not listed are not reverted.
type Policy map[Operation]bool

// DefaultPolicy reverts creates, votes, comments and promo usage. Updates,
// status changes, deletes and propagation keep the local change even when
// the remote write fails, so local and remote state may diverge.
var DefaultPolicy = Policy{
	OpCreate:     true,
	OpVote:       true,
	OpComment:    true,
	OpPromoUsage: true,
	OpUpdate:     false,
	OpStatus:     false,
	OpDelete:     false,
	OpPropagate:  false,
}

func (p Policy) Rollback(op Operation) bool {
	return p[op]
}
