// Package docstore defines the path-addressed document tree the repositories
// mirror their state into, plus helpers shared by the store implementations.
//
// Paths are "/"-separated ("prompts/p1/comments/0/author"). Values are
// JSON-shaped: map[string]any, []any, string, float64, bool or nil.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrInvalidPath = errors.New("invalid path")
	ErrClosed      = errors.New("store closed")
)

// Unsubscribe stops a subscription. Calling it more than once is a no-op.
type Unsubscribe func()

// Store is the remote document tree.
type Store interface {
	// Get returns the value at path, or nil when nothing is stored there.
	Get(ctx context.Context, path string) (any, error)
	// Set overwrites the value at path. A nil value removes it.
	Set(ctx context.Context, path string, value any) error
	// Update merges fields into the node at path, one level deep. A key may be
	// a relative path; a nil member removes that child.
	Update(ctx context.Context, path string, fields map[string]any) error
	// Push stores value under a newly generated child id of path.
	Push(ctx context.Context, path string, value any) (string, error)
	Remove(ctx context.Context, path string) error
	// MultiPathUpdate sets every path in values, all or nothing.
	MultiPathUpdate(ctx context.Context, values map[string]any) error
	// Subscribe calls fn with the current value at path, then again after every
	// write touching path, one of its ancestors or one of its descendants.
	Subscribe(ctx context.Context, path string, fn func(any)) (Unsubscribe, error)
	Close() error
}

// SplitPath validates p and returns its segments. The root path "" or "/"
// yields no segments.
func SplitPath(p string) ([]string, error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil, nil
	}
	segs := strings.Split(p, "/")
	for _, s := range segs {
		if s == "" || strings.ContainsAny(s, ".#$[]") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	return segs, nil
}

// Join builds a path from segments.
func Join(segs ...string) string {
	return strings.Join(segs, "/")
}

// Index formats an array position as a path segment.
func Index(i int) string {
	return strconv.Itoa(i)
}

// NewPushID returns a time-ordered child id.
func NewPushID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Encode converts a typed value into its JSON-shaped form.
func Encode(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return out, nil
}

// Decode converts a JSON-shaped value into out.
func Decode(raw any, out any) error {
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// Children returns the child nodes of a collection value keyed by id. Arrays
// are keyed by position.
func Children(raw any) map[string]any {
	switch v := raw.(type) {
	case map[string]any:
		return v
	case []any:
		out := make(map[string]any, len(v))
		for i, c := range v {
			if c != nil {
				out[Index(i)] = c
			}
		}
		return out
	}
	return nil
}
