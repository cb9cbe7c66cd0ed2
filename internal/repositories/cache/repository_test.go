package cache

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/promptmarket/internal/common"
	"github.com/dmitrijs2005/promptmarket/internal/docstore"
	"github.com/dmitrijs2005/promptmarket/internal/docstore/memory"
	"github.com/dmitrijs2005/promptmarket/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Count int      `json:"count"`
	Tags  []string `json:"tags,omitempty"`
}

func (i item) Key() string { return i.ID }

func (i item) WithKey(id string) item {
	i.ID = id
	return i
}

func (i item) Clone() item {
	i.Tags = slices.Clone(i.Tags)
	return i
}

var errRemote = errors.New("remote unavailable")

func newRepo(t *testing.T, policy Policy) (*Repository[item], *memory.Store) {
	t.Helper()
	store := memory.New()
	mirror := NewMirror(store, policy, logging.NewNop(), nil)
	repo := New[item](mirror, Options[item]{Entity: "items", Root: "items"})
	return repo, store
}

func seed(t *testing.T, store *memory.Store, items ...item) {
	t.Helper()
	for _, it := range items {
		require.NoError(t, store.Seed("items/"+it.ID, it))
	}
}

func ids(items []item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestDefaultPolicy(t *testing.T) {
	tests := []struct {
		op   Operation
		want bool
	}{
		{OpCreate, true},
		{OpVote, true},
		{OpComment, true},
		{OpPromoUsage, true},
		{OpUpdate, false},
		{OpStatus, false},
		{OpDelete, false},
		{OpPropagate, false},
		{Operation("unknown"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultPolicy.Rollback(tt.op))
		})
	}
}

func TestLoad(t *testing.T) {
	repo, store := newRepo(t, nil)
	seed(t, store, item{ID: "b", Name: "B"}, item{ID: "a", Name: "A"})

	repo.Load(context.Background())

	assert.True(t, repo.Loaded())
	assert.Equal(t, []string{"a", "b"}, ids(repo.All()))
	got, ok := repo.Get("b")
	require.True(t, ok)
	assert.Equal(t, "B", got.Name)
}

func TestLoad_CompareOrder(t *testing.T) {
	store := memory.New()
	seed(t, store, item{ID: "a", Count: 1}, item{ID: "b", Count: 3}, item{ID: "c", Count: 2})
	repo := New[item](NewMirror(store, nil, logging.NewNop(), nil), Options[item]{
		Entity:  "items",
		Root:    "items",
		Compare: func(x, y item) int { return y.Count - x.Count },
	})

	repo.Load(context.Background())
	assert.Equal(t, []string{"b", "c", "a"}, ids(repo.All()))
}

func TestLoad_FailureStartsEmpty(t *testing.T) {
	repo, store := newRepo(t, nil)
	seed(t, store, item{ID: "a"})
	repo.InsertLocal(item{ID: "stale"})

	store.FailNext(errRemote)
	repo.Load(context.Background())

	assert.True(t, repo.Loaded())
	assert.Equal(t, 0, repo.Len())
}

func TestAdd_Mirrors(t *testing.T) {
	repo, store := newRepo(t, nil)
	ctx := context.Background()

	got := repo.Add(ctx, item{Name: "new"})
	require.NotEmpty(t, got.ID)
	assert.Equal(t, 1, repo.Len())

	repo.Wait()
	name, err := store.Get(ctx, "items/"+got.ID+"/name")
	require.NoError(t, err)
	assert.Equal(t, "new", name)
}

func TestAdd_PrependsNewest(t *testing.T) {
	repo, _ := newRepo(t, nil)
	ctx := context.Background()

	repo.Add(ctx, item{ID: "first"})
	repo.Add(ctx, item{ID: "second"})
	repo.Wait()

	assert.Equal(t, []string{"second", "first"}, ids(repo.All()))
}

func TestAdd_RollbackOnFailure(t *testing.T) {
	repo, store := newRepo(t, nil)
	ctx := context.Background()
	seed(t, store, item{ID: "a"}, item{ID: "b"}, item{ID: "c"})
	repo.Load(ctx)
	require.Equal(t, 3, repo.Len())

	store.FailNext(errRemote)
	repo.Add(ctx, item{ID: "d"})
	assert.Equal(t, 4, repo.Len(), "insert is visible before the write settles")

	repo.Wait()
	assert.Equal(t, 3, repo.Len())
	assert.ElementsMatch(t, []string{"a", "b", "c"}, ids(repo.All()))
}

func TestAdd_IgnoresCallerCancellation(t *testing.T) {
	repo, store := newRepo(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo.Add(ctx, item{ID: "x", Name: "kept"})
	repo.Wait()

	got, err := store.Get(context.Background(), "items/x/name")
	require.NoError(t, err)
	assert.Equal(t, "kept", got)
}

func TestUpdate_NoRollbackOnFailure(t *testing.T) {
	repo, store := newRepo(t, nil)
	ctx := context.Background()
	seed(t, store, item{ID: "a", Name: "old"})
	repo.Load(ctx)

	store.FailOn(memory.OpUpdate, errRemote)
	got, err := repo.Update(ctx, "a", func(it item) (item, error) {
		it.Name = "new"
		return it, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "new", got.Name)

	repo.Wait()
	local, _ := repo.Get("a")
	assert.Equal(t, "new", local.Name, "local change is kept")
	remote, _ := store.Get(ctx, "items/a/name")
	assert.Equal(t, "old", remote, "remote diverges")
}

func TestUpdate_MergesIntoDocument(t *testing.T) {
	repo, store := newRepo(t, nil)
	ctx := context.Background()
	require.NoError(t, store.Seed("items/a", map[string]any{"id": "a", "name": "old", "extra": "kept"}))
	repo.Load(ctx)

	_, err := repo.Update(ctx, "a", func(it item) (item, error) {
		it.Count = 7
		return it, nil
	})
	require.NoError(t, err)
	repo.Wait()

	doc, err := store.Get(ctx, "items/a")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "a", "name": "old", "count": float64(7), "extra": "kept"}, doc)
}

func TestUpdate_RemovesClearedMembers(t *testing.T) {
	repo, store := newRepo(t, nil)
	ctx := context.Background()
	seed(t, store, item{ID: "a", Name: "old", Tags: []string{"x", "y"}})
	repo.Load(ctx)

	_, err := repo.Update(ctx, "a", func(it item) (item, error) {
		it.Tags = nil
		return it, nil
	})
	require.NoError(t, err)
	repo.Wait()

	tags, err := store.Get(ctx, "items/a/tags")
	require.NoError(t, err)
	assert.Nil(t, tags)

	reloaded := New[item](NewMirror(store, nil, logging.NewNop(), nil), Options[item]{Entity: "items", Root: "items"})
	reloaded.Load(ctx)
	got, ok := reloaded.Get("a")
	require.True(t, ok)
	assert.Empty(t, got.Tags)
	assert.Equal(t, "old", got.Name)
}

// Writes for one item are not ordered: the edit whose write lands last wins
// remotely, whatever order the edits were made in.
func TestUpdate_RapidEditsRace(t *testing.T) {
	repo, store := newRepo(t, nil)
	ctx := context.Background()
	seed(t, store, item{ID: "a", Name: "seed"})
	repo.Load(ctx)

	gate := make(chan struct{})
	store.SetDelay(func(w memory.Write) time.Duration {
		if w.Values["name"] == "first" {
			<-gate
		}
		return 0
	})

	rename := func(name string) {
		_, err := repo.Update(ctx, "a", func(it item) (item, error) {
			it.Name = name
			return it, nil
		})
		require.NoError(t, err)
	}
	rename("first")
	rename("second")

	require.Eventually(t, func() bool {
		v, _ := store.Get(ctx, "items/a/name")
		return v == "second"
	}, time.Second, time.Millisecond)
	close(gate)
	repo.Wait()

	remote, err := store.Get(ctx, "items/a/name")
	require.NoError(t, err)
	assert.Equal(t, "first", remote)
	local, _ := repo.Get("a")
	assert.Equal(t, "second", local.Name)
}

func TestMutateRevert_KeepsConcurrentChanges(t *testing.T) {
	repo, store := newRepo(t, nil)
	ctx := context.Background()
	seed(t, store, item{ID: "a", Name: "old", Count: 5})
	repo.Load(ctx)

	gate := make(chan struct{})
	store.SetDelay(func(memory.Write) time.Duration {
		<-gate
		return 0
	})
	store.FailOn(memory.OpUpdate, errRemote)

	_, err := repo.MutateRevert(ctx, OpVote, "a", func(it item) (item, error) {
		it.Count++
		return it, nil
	}, func(next item) Write {
		return func(ctx context.Context, s docstore.Store) error {
			return s.Update(ctx, "items/a", map[string]any{"count": next.Count})
		}
	}, func(cur, before item) item {
		cur.Count = before.Count
		return cur
	})
	require.NoError(t, err)

	_, ok := repo.ApplyLocal("a", func(it item) item {
		it.Name = "renamed"
		return it
	})
	require.True(t, ok)
	close(gate)
	repo.Wait()

	got, _ := repo.Get("a")
	assert.Equal(t, 5, got.Count)
	assert.Equal(t, "renamed", got.Name)
}

func TestMutateRevert_SkipsRemovedItem(t *testing.T) {
	repo, store := newRepo(t, nil)
	ctx := context.Background()
	seed(t, store, item{ID: "a", Count: 1})
	repo.Load(ctx)

	gate := make(chan struct{})
	store.SetDelay(func(memory.Write) time.Duration {
		<-gate
		return 0
	})
	store.FailOn(memory.OpUpdate, errRemote)

	_, err := repo.MutateRevert(ctx, OpVote, "a", func(it item) (item, error) {
		it.Count++
		return it, nil
	}, func(next item) Write {
		return func(ctx context.Context, s docstore.Store) error {
			return s.Update(ctx, "items/a", map[string]any{"count": next.Count})
		}
	}, func(cur, before item) item { return before })
	require.NoError(t, err)

	repo.RemoveLocal("a")
	close(gate)
	repo.Wait()

	assert.Equal(t, 0, repo.Len())
}

func TestUpdate_NotFound(t *testing.T) {
	repo, _ := newRepo(t, nil)
	_, err := repo.Update(context.Background(), "missing", func(it item) (item, error) { return it, nil })
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUpdate_FuncErrorLeavesItem(t *testing.T) {
	repo, store := newRepo(t, nil)
	ctx := context.Background()
	seed(t, store, item{ID: "a", Name: "old"})
	repo.Load(ctx)
	store.ResetWrites()

	boom := errors.New("invalid")
	_, err := repo.Update(ctx, "a", func(it item) (item, error) {
		it.Name = "half"
		return it, boom
	})
	assert.ErrorIs(t, err, boom)

	repo.Wait()
	got, _ := repo.Get("a")
	assert.Equal(t, "old", got.Name)
	assert.Empty(t, store.Writes())
}

func TestMutate_RollbackRestoresSnapshot(t *testing.T) {
	repo, store := newRepo(t, nil)
	ctx := context.Background()
	seed(t, store, item{ID: "a", Count: 5, Tags: []string{"x"}})
	repo.Load(ctx)

	store.FailNext(errRemote)
	_, err := repo.Mutate(ctx, OpVote, "a", func(it item) (item, error) {
		it.Count++
		it.Tags = append(it.Tags, "y")
		return it, nil
	}, func(next item) Write {
		return func(ctx context.Context, s docstore.Store) error {
			return s.Update(ctx, "items/a", map[string]any{"count": next.Count})
		}
	})
	require.NoError(t, err)

	repo.Wait()
	got, _ := repo.Get("a")
	assert.Equal(t, 5, got.Count)
	assert.Equal(t, []string{"x"}, got.Tags)
}

func TestCustomPolicy_RevertsUpdate(t *testing.T) {
	repo, store := newRepo(t, Policy{OpUpdate: true})
	ctx := context.Background()
	seed(t, store, item{ID: "a", Name: "old"})
	repo.Load(ctx)

	store.FailNext(errRemote)
	_, err := repo.Update(ctx, "a", func(it item) (item, error) {
		it.Name = "new"
		return it, nil
	})
	require.NoError(t, err)

	repo.Wait()
	got, _ := repo.Get("a")
	assert.Equal(t, "old", got.Name)
}

func TestRemove_NoRollbackOnFailure(t *testing.T) {
	repo, store := newRepo(t, nil)
	ctx := context.Background()
	seed(t, store, item{ID: "a"}, item{ID: "b"})
	repo.Load(ctx)

	store.FailNext(errRemote)
	require.NoError(t, repo.Remove(ctx, "a"))

	repo.Wait()
	assert.Equal(t, []string{"b"}, ids(repo.All()))
	remote, _ := store.Get(ctx, "items/a")
	assert.NotNil(t, remote, "remote keeps the item")

	assert.ErrorIs(t, repo.Remove(ctx, "a"), common.ErrorNotFound)
}

func TestApplyLocal_DoesNotWrite(t *testing.T) {
	repo, store := newRepo(t, nil)
	ctx := context.Background()
	seed(t, store, item{ID: "a", Name: "old"})
	repo.Load(ctx)
	store.ResetWrites()

	got, ok := repo.ApplyLocal("a", func(it item) item {
		it.Name = strings.ToUpper(it.Name)
		return it
	})
	require.True(t, ok)
	assert.Equal(t, "OLD", got.Name)

	_, ok = repo.ApplyLocal("missing", func(it item) item { return it })
	assert.False(t, ok)

	repo.Wait()
	assert.Empty(t, store.Writes())
}

func TestOnChange(t *testing.T) {
	repo, store := newRepo(t, nil)
	ctx := context.Background()
	seed(t, store, item{ID: "a"})

	type change struct{ old, new string }
	var changes []change
	repo.OnChange(func(old, new *item) {
		c := change{}
		if old != nil {
			c.old = old.ID
		}
		if new != nil {
			c.new = new.ID
		}
		changes = append(changes, c)
	})

	repo.Load(ctx)
	repo.Add(ctx, item{ID: "b"})
	_, err := repo.Update(ctx, "a", func(it item) (item, error) { return it, nil })
	require.NoError(t, err)
	require.NoError(t, repo.Remove(ctx, "b"))
	repo.Wait()
	repo.Reset()

	assert.Equal(t, []change{
		{"", "a"},
		{"", "b"},
		{"a", "a"},
		{"b", ""},
		{"a", ""},
	}, changes)
	assert.False(t, repo.Loaded())
}

func TestAll_ReturnsCopies(t *testing.T) {
	repo, _ := newRepo(t, nil)
	repo.InsertLocal(item{ID: "a", Tags: []string{"x"}})

	all := repo.All()
	all[0].Tags[0] = "mutated"

	got, _ := repo.Get("a")
	assert.Equal(t, []string{"x"}, got.Tags)
}
