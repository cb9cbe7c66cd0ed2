// Package quota computes the per-user generation and submission allowances.
//
// Each counter is stored with the key of the period it was last incremented
// in. A stored key that differs from the current period's key means the
// counter belongs to a past period and reads as zero; nothing rewrites it
// until the next increment.
package quota

import (
	"fmt"
	"math"
	"time"

	"github.com/dmitrijs2005/promptmarket/internal/models"
)

// Unlimited is the allowance of pro-tier generations.
const Unlimited = math.MaxInt

type Limits struct {
	FreeGenerations int
	FreeSubmissions int
	ProSubmissions  int
}

type Tracker struct {
	Limits   Limits
	Location *time.Location
	Now      func() time.Time
}

func New(limits Limits, loc *time.Location) *Tracker {
	if loc == nil {
		loc = time.UTC
	}
	return &Tracker{Limits: limits, Location: loc, Now: time.Now}
}

func (t *Tracker) now() time.Time {
	return t.Now().In(t.Location)
}

// GenerationKey is "{year}-{month}" with a zero-based month, e.g. June 2023
// is "2023-5".
func GenerationKey(tm time.Time) string {
	return fmt.Sprintf("%d-%d", tm.Year(), int(tm.Month())-1)
}

// SubmissionKey is the calendar date, YYYY-MM-DD.
func SubmissionKey(tm time.Time) string {
	return tm.Format(time.DateOnly)
}

func (t *Tracker) CurrentGenerationKey() string { return GenerationKey(t.now()) }

func (t *Tracker) CurrentSubmissionKey() string { return SubmissionKey(t.now()) }

// Generations is the user's count in the current period.
func (t *Tracker) Generations(u models.User) int {
	if u.LastGenerationReset != t.CurrentGenerationKey() {
		return 0
	}
	return u.GenerationCount
}

// GenerationsLeft may be zero or negative once the allowance is used up.
func (t *Tracker) GenerationsLeft(u models.User) int {
	if u.IsPro() {
		return Unlimited
	}
	return t.Limits.FreeGenerations - t.Generations(u)
}

func (t *Tracker) CanGenerate(u models.User) bool {
	return t.GenerationsLeft(u) > 0
}

// NextGeneration returns the counter state after one more generation. Pro
// users are not counted.
func (t *Tracker) NextGeneration(u models.User) (count int, key string) {
	if u.IsPro() {
		return u.GenerationCount, u.LastGenerationReset
	}
	return t.Generations(u) + 1, t.CurrentGenerationKey()
}

func (t *Tracker) SubmissionLimit(u models.User) int {
	if u.IsPro() {
		return t.Limits.ProSubmissions
	}
	return t.Limits.FreeSubmissions
}

func (t *Tracker) Submissions(u models.User) int {
	if u.LastSubmissionReset != t.CurrentSubmissionKey() {
		return 0
	}
	return u.SubmissionCount
}

func (t *Tracker) SubmissionsLeft(u models.User) int {
	return t.SubmissionLimit(u) - t.Submissions(u)
}

func (t *Tracker) CanSubmit(u models.User) bool {
	return t.SubmissionsLeft(u) > 0
}

// NextSubmission returns the counter state after one more submission.
func (t *Tracker) NextSubmission(u models.User) (count int, key string) {
	return t.Submissions(u) + 1, t.CurrentSubmissionKey()
}
