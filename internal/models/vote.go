package models

import "fmt"

type VoteDirection string

const (
	VoteNone VoteDirection = ""
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

func (d VoteDirection) Valid() bool {
	return d == VoteNone || d == VoteUp || d == VoteDown
}

// VoteDelta returns the counter changes for a click on next while prev was
// stored. Clicking the stored direction again toggles it off.
//
//	prev  next  up  down
//	none  up    +1   0
//	none  down   0  +1
//	up    up    -1   0
//	down  down   0  -1
//	up    down  -1  +1
//	down  up    +1  -1
func VoteDelta(prev, next VoteDirection) (up, down int, err error) {
	switch {
	case prev == VoteNone && next == VoteUp:
		return 1, 0, nil
	case prev == VoteNone && next == VoteDown:
		return 0, 1, nil
	case prev == VoteUp && next == VoteUp:
		return -1, 0, nil
	case prev == VoteDown && next == VoteDown:
		return 0, -1, nil
	case prev == VoteUp && next == VoteDown:
		return -1, 1, nil
	case prev == VoteDown && next == VoteUp:
		return 1, -1, nil
	}
	return 0, 0, fmt.Errorf("no vote transition from %q to %q", prev, next)
}

// NextVote is the direction stored on the user after clicking next.
func NextVote(prev, next VoteDirection) VoteDirection {
	if prev == next {
		return VoteNone
	}
	return next
}
