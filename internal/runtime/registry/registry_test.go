package registry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	flowerrors "github.com/drblury/flowmgmt/internal/runtime/errors"
	"github.com/drblury/flowmgmt/internal/runtime/naming"
	"github.com/drblury/flowmgmt/internal/runtime/stats"
)

type stubHandle struct {
	kind naming.Kind
	id   string
}

func (s *stubHandle) Kind() naming.Kind        { return s.kind }
func (s *stubHandle) AttributeNames() []string { return []string{"Id"} }

func (s *stubHandle) Attribute(name string) (any, error) {
	if name == "Id" {
		return s.id, nil
	}
	return nil, flowerrors.ErrUnknownAttribute
}

func (s *stubHandle) Invoke(context.Context, string, ...any) (any, error) {
	return nil, flowerrors.ErrUnknownOperation
}

func routeName(ctx, id string) naming.Name {
	return naming.Name{Domain: "flowmgmt", Context: ctx, Kind: naming.KindRoute, Local: id}
}

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	handle := &stubHandle{kind: naming.KindRoute, id: "foo"}
	st := stats.New()

	rec, err := r.Register(Record{Name: routeName("camel-1", "foo"), Handle: handle, Stats: st})
	require.NoError(t, err)
	assert.Equal(t, naming.KindRoute, rec.Kind)
	assert.False(t, rec.RegisteredAt.IsZero())
	assert.Same(t, st, rec.Stats)

	got, ok := r.Lookup(routeName("camel-1", "foo"))
	require.True(t, ok)
	assert.Same(t, rec, got)
	assert.True(t, r.IsRegistered(routeName("camel-1", "foo")))
	assert.Equal(t, 1, r.Len())
}

func TestRegisterSameHandleIsIdempotent(t *testing.T) {
	r := New()
	handle := &stubHandle{kind: naming.KindRoute}
	first, err := r.Register(Record{Name: routeName("c", "foo"), Handle: handle})
	require.NoError(t, err)
	second, err := r.Register(Record{Name: routeName("c", "foo"), Handle: handle})
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, r.Len())
}

func TestRegisterClash(t *testing.T) {
	r := New()
	_, err := r.Register(Record{Name: routeName("c", "foo"), Handle: &stubHandle{kind: naming.KindRoute}})
	require.NoError(t, err)

	_, err = r.Register(Record{Name: routeName("c", "foo"), Handle: &stubHandle{kind: naming.KindRoute}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, flowerrors.ErrNameClash))
	assert.Equal(t, 1, r.Len())
}

func TestRegisterRejectsInvalid(t *testing.T) {
	r := New()
	_, err := r.Register(Record{Name: routeName("c", "foo")})
	assert.ErrorIs(t, err, flowerrors.ErrInvalidArgument)

	_, err = r.Register(Record{Name: routeName("c", "foo"), Handle: &stubHandle{kind: naming.KindEndpoint}})
	assert.ErrorIs(t, err, flowerrors.ErrCapabilityMismatch)
	assert.Zero(t, r.Len())
}

func TestUnregisterIsIdempotent(t *testing.T) {
	r := New()
	name := routeName("c", "foo")
	_, err := r.Register(Record{Name: name, Handle: &stubHandle{kind: naming.KindRoute}})
	require.NoError(t, err)

	assert.True(t, r.Unregister(name))
	assert.False(t, r.Unregister(name))
	assert.False(t, r.IsRegistered(name))
	_, ok := r.Lookup(name)
	assert.False(t, ok)
}

func TestUnregisterContext(t *testing.T) {
	r := New()
	for _, ctx := range []string{"a", "a", "b"} {
		_, err := r.Register(Record{Name: routeName(ctx, fmt.Sprint(r.Len())), Handle: &stubHandle{kind: naming.KindRoute}})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, r.UnregisterContext("a"))
	assert.Equal(t, 1, r.Len())
	assert.Zero(t, r.UnregisterContext("a"))
}

func TestQuery(t *testing.T) {
	r := New()
	names := []naming.Name{
		{Domain: "flowmgmt", Context: "camel-1", Kind: naming.KindRoute, Local: "foo"},
		{Domain: "flowmgmt", Context: "camel-1", Kind: naming.KindRoute, Local: "bar"},
		{Domain: "flowmgmt", Context: "camel-1", Kind: naming.KindProcessor, Local: "to1"},
		{Domain: "flowmgmt", Context: "camel-1", Kind: naming.KindEndpoint, Local: "seda://q?size=1"},
		{Domain: "flowmgmt", Context: "camel-2", Kind: naming.KindThreadPool, Local: "agg-timeout"},
		{Domain: "other", Context: "camel-1", Kind: naming.KindRoute, Local: "foo"},
	}
	for _, n := range names {
		_, err := r.Register(Record{Name: n, Handle: &stubHandle{kind: n.Kind}})
		require.NoError(t, err)
	}

	tests := []struct {
		pattern string
		want    int
	}{
		{"*", 6},
		{"", 6},
		{"flowmgmt:*", 5},
		{"flowmgmt:type=routes,*", 2},
		{"*:type=routes", 3},
		{"flowmgmt:type=thread*", 1},
		{"flowmgmt:context=camel-1,type=routes,name=\"f*\"", 1},
		{`flowmgmt:context=camel-1,type=endpoints,name="seda\://q\?size=1"`, 1},
		{"flowmgmt:type=consumers,*", 0},
		{"flowmgmt:context=camel-*,type=*,name=*", 5},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			p, err := ParsePattern(tt.pattern)
			require.NoError(t, err)
			got := r.Query(p)
			assert.NotNil(t, got)
			assert.Len(t, got, tt.want)
		})
	}

	exact := r.Query(ExactPattern(names[3]))
	assert.Equal(t, []naming.Name{names[3]}, exact)

	canonical, err := ParsePattern(names[3].String())
	require.NoError(t, err)
	assert.Equal(t, exact, r.Query(canonical))

	assert.Len(t, r.Query(KindPattern("flowmgmt", naming.KindRoute)), 2)
	assert.Len(t, r.Query(ContextPattern("flowmgmt", "camel-2")), 1)
}

func TestQueryLiteralStarIsNotWildcard(t *testing.T) {
	r := New()
	literal := naming.Name{Domain: "d", Context: "c", Kind: naming.KindRoute, Local: "a*"}
	other := naming.Name{Domain: "d", Context: "c", Kind: naming.KindRoute, Local: "ab"}
	for _, n := range []naming.Name{literal, other} {
		_, err := r.Register(Record{Name: n, Handle: &stubHandle{kind: n.Kind}})
		require.NoError(t, err)
	}
	assert.Equal(t, []naming.Name{literal}, r.Query(ExactPattern(literal)))
}

func TestParsePatternErrors(t *testing.T) {
	for _, s := range []string{"nodomain", "d:type", "d:color=red"} {
		_, err := ParsePattern(s)
		assert.Error(t, err, s)
	}
}

// The visible name set always equals registered minus unregistered.
func TestRegistryMatchesModelUnderRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	r := New()
	model := map[naming.Name]bool{}
	handles := map[naming.Name]Handle{}

	for step := 0; step < 2000; step++ {
		name := routeName("c", fmt.Sprint(rng.Intn(40)))
		if rng.Intn(2) == 0 {
			h, ok := handles[name]
			if !ok {
				h = &stubHandle{kind: naming.KindRoute}
				handles[name] = h
			}
			_, err := r.Register(Record{Name: name, Handle: h})
			require.NoError(t, err)
			model[name] = true
		} else {
			assert.Equal(t, model[name], r.Unregister(name))
			delete(model, name)
		}
		require.Equal(t, len(model), r.Len())
	}

	got := r.Query(All)
	require.Len(t, got, len(model))
	seen := map[naming.Name]bool{}
	for _, n := range got {
		assert.True(t, model[n])
		assert.False(t, seen[n], "duplicate %s", n)
		seen[n] = true
	}
}

func TestConcurrentRegisterAndQuery(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				name := routeName("c", fmt.Sprintf("%d-%d", w, i))
				_, err := r.Register(Record{Name: name, Handle: &stubHandle{kind: naming.KindRoute}})
				assert.NoError(t, err)
				for _, rec := range r.Records() {
					assert.NotNil(t, rec.Handle)
				}
				if i%2 == 0 {
					r.Unregister(name)
				}
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, 400, r.Len())
}
