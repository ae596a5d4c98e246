package memoize_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-bucket-cache/bucket"
	"github.com/goliatone/go-bucket-cache/codec"
	"github.com/goliatone/go-bucket-cache/memoize"
)

func newStore(t *testing.T) *bucket.Bucket {
	t.Helper()

	jsonCodec, err := codec.NewJSON(codec.JSONConfig{})
	require.NoError(t, err)

	b, err := bucket.New(t.TempDir(), bucket.WithCodec(jsonCodec))
	require.NoError(t, err)
	return b
}

func TestWrapCallsOnce(t *testing.T) {
	calls := 0
	square, err := memoize.Wrap(newStore(t), func(pos []any, _ map[string]any) (any, error) {
		calls++
		n := pos[0].(int)
		return n * n, nil
	}, memoize.Config{Name: "square", Params: []string{"n"}})
	require.NoError(t, err)

	got, err := square.Call(7)
	require.NoError(t, err)
	assert.Equal(t, 49, got)
	assert.Equal(t, 1, calls)

	got, err = square.Call(7)
	require.NoError(t, err)
	assert.Equal(t, 49, got)
	assert.Equal(t, 1, calls, "second call served from cache")

	got, err = square.Call(8)
	require.NoError(t, err)
	assert.Equal(t, 64, got)
	assert.Equal(t, 2, calls)
}

func TestWrapKeywordFormSharesEntry(t *testing.T) {
	calls := 0
	add, err := memoize.Wrap(newStore(t), func(pos []any, named map[string]any) (any, error) {
		calls++
		a, b := 0, 0
		if len(pos) > 0 {
			a = pos[0].(int)
		} else {
			a = named["a"].(int)
		}
		if len(pos) > 1 {
			b = pos[1].(int)
		} else {
			b = named["b"].(int)
		}
		return a + b, nil
	}, memoize.Config{Name: "add", Params: []string{"a", "b"}})
	require.NoError(t, err)

	got, err := add.Call(2, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, got)

	got, err = add.CallNamed(nil, map[string]any{"a": 2, "b": 3})
	require.NoError(t, err)
	assert.Equal(t, 5, got)
	assert.Equal(t, 1, calls, "positional and named forms normalize to one entry")

	got, err = add.CallNamed([]any{2}, map[string]any{"b": 3})
	require.NoError(t, err)
	assert.Equal(t, 5, got)
	assert.Equal(t, 1, calls)
}

func TestWrapDefaults(t *testing.T) {
	calls := 0
	greet, err := memoize.Wrap(newStore(t), func(pos []any, named map[string]any) (any, error) {
		calls++
		return "hi", nil
	}, memoize.Config{
		Name:     "greet",
		Params:   []string{"name", "lang"},
		Defaults: map[string]any{"lang": "en"},
	})
	require.NoError(t, err)

	_, err = greet.Call("ada")
	require.NoError(t, err)

	_, err = greet.CallNamed([]any{"ada"}, map[string]any{"lang": "en"})
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "omitted parameter fills from its default")

	_, err = greet.CallNamed([]any{"ada"}, map[string]any{"lang": "fr"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestWrapNocache(t *testing.T) {
	calls := 0
	w, err := memoize.Wrap(newStore(t), func(pos []any, named map[string]any) (any, error) {
		calls++
		return calls, nil
	}, memoize.Config{
		Name:     "fetch",
		Params:   []string{"id", "refresh"},
		Defaults: map[string]any{"refresh": false},
		Nocache:  "refresh",
	})
	require.NoError(t, err)

	got, err := w.Call("x")
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	// Truthy nocache bypasses the lookup but still writes the result.
	got, err = w.CallNamed([]any{"x"}, map[string]any{"refresh": true})
	require.NoError(t, err)
	assert.Equal(t, 2, got)

	got, err = w.Call("x")
	require.NoError(t, err)
	assert.Equal(t, 2, got, "refreshed result replaced the cached one")
	assert.Equal(t, 2, calls)
}

func TestWrapIgnore(t *testing.T) {
	t.Run("named parameter", func(t *testing.T) {
		calls := 0
		w, err := memoize.Wrap(newStore(t), func(pos []any, _ map[string]any) (any, error) {
			calls++
			return pos[0], nil
		}, memoize.Config{
			Name:   "lookup",
			Params: []string{"id", "trace"},
			Ignore: []string{"trace"},
		})
		require.NoError(t, err)

		_, err = w.Call("a", "trace-1")
		require.NoError(t, err)
		_, err = w.Call("a", "trace-2")
		require.NoError(t, err)
		assert.Equal(t, 1, calls, "ignored parameter does not split the entry")
	})

	t.Run("variadic bucket", func(t *testing.T) {
		calls := 0
		w, err := memoize.Wrap(newStore(t), func(pos []any, _ map[string]any) (any, error) {
			calls++
			return pos[0], nil
		}, memoize.Config{
			Name:     "report",
			Params:   []string{"id"},
			Variadic: "extras",
			Ignore:   []string{"extras"},
		})
		require.NoError(t, err)

		_, err = w.Call("a")
		require.NoError(t, err)
		_, err = w.Call("a", "x", "y")
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("keyword variadic bucket", func(t *testing.T) {
		calls := 0
		w, err := memoize.Wrap(newStore(t), func(pos []any, _ map[string]any) (any, error) {
			calls++
			return pos[0], nil
		}, memoize.Config{
			Name:   "render",
			Params: []string{"id"},
			VarKw:  "opts",
			Ignore: []string{"opts"},
		})
		require.NoError(t, err)

		_, err = w.Call("a")
		require.NoError(t, err)
		_, err = w.CallNamed([]any{"a"}, map[string]any{"theme": "dark"})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})
}

func TestWrapVariadicSplitsEntries(t *testing.T) {
	calls := 0
	w, err := memoize.Wrap(newStore(t), func(pos []any, _ map[string]any) (any, error) {
		calls++
		return len(pos), nil
	}, memoize.Config{
		Name:     "sum",
		Params:   []string{"base"},
		Variadic: "rest",
	})
	require.NoError(t, err)

	_, err = w.Call(1)
	require.NoError(t, err)
	_, err = w.Call(1, 2)
	require.NoError(t, err)
	_, err = w.Call(1, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestWrapOnHit(t *testing.T) {
	var hits []memoize.CallInfo
	w, err := memoize.Wrap(newStore(t), func(pos []any, _ map[string]any) (any, error) {
		return pos[0].(int) * 2, nil
	}, memoize.Config{Name: "double", Params: []string{"n"}})
	require.NoError(t, err)
	w.OnHit(func(info memoize.CallInfo) { hits = append(hits, info) })

	_, err = w.Call(5)
	require.NoError(t, err)
	assert.Empty(t, hits, "first call is a miss")

	_, err = w.Call(5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 10, hits[0].Value)
	assert.Equal(t, map[string]any{"n": 5}, hits[0].Args)
	assert.Nil(t, hits[0].Expiration)
}

func TestWrapOnHitExpiration(t *testing.T) {
	jsonCodec, err := codec.NewJSON(codec.JSONConfig{})
	require.NoError(t, err)
	store, err := bucket.New(t.TempDir(),
		bucket.WithCodec(jsonCodec),
		bucket.WithLifetime(time.Hour),
	)
	require.NoError(t, err)

	var hits []memoize.CallInfo
	w, err := memoize.Wrap(store, func(pos []any, _ map[string]any) (any, error) {
		return "v", nil
	}, memoize.Config{Name: "f", Params: []string{"n"}})
	require.NoError(t, err)
	w.OnHit(func(info memoize.CallInfo) { hits = append(hits, info) })

	_, err = w.Call(1)
	require.NoError(t, err)
	_, err = w.Call(1)
	require.NoError(t, err)

	require.Len(t, hits, 1)
	require.NotNil(t, hits[0].Expiration)
	assert.True(t, hits[0].Expiration.After(time.Now()))
}

type repo struct {
	Region string
	conn   any
}

func TestWrapMethod(t *testing.T) {
	calls := 0
	find, err := memoize.Wrap(newStore(t), func(pos []any, _ map[string]any) (any, error) {
		calls++
		r := pos[0].(*repo)
		return r.Region + ":" + pos[1].(string), nil
	}, memoize.Config{
		Name:   "repo.find",
		Params: []string{"r", "id"},
		Method: true,
	})
	require.NoError(t, err)

	eu := &repo{Region: "eu", conn: "a"}
	euTwin := &repo{Region: "eu", conn: "b"}
	us := &repo{Region: "us"}

	got, err := find.Call(eu, "42")
	require.NoError(t, err)
	assert.Equal(t, "eu:42", got)

	_, err = find.Call(euTwin, "42")
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "receivers with equal state share entries")

	got, err = find.Call(us, "42")
	require.NoError(t, err)
	assert.Equal(t, "us:42", got)
	assert.Equal(t, 2, calls)

	t.Run("state change invalidates", func(t *testing.T) {
		eu.Region = "eu-west"
		_, err := find.Call(eu, "42")
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})
}

func TestWrapMutationDetected(t *testing.T) {
	w, err := memoize.Wrap(newStore(t), func(pos []any, _ map[string]any) (any, error) {
		items := pos[0].(*[]string)
		*items = append(*items, "side effect")
		return len(*items), nil
	}, memoize.Config{Name: "mutator", Params: []string{"items"}})
	require.NoError(t, err)

	items := &[]string{"a"}
	_, err = w.Call(items)

	var mutErr *memoize.NonCacheableMutationError
	require.ErrorAs(t, err, &mutErr)
	assert.Equal(t, "mutator", mutErr.Function)
	assert.False(t, mutErr.Method)
}

func TestWrapMethodMutationDetected(t *testing.T) {
	type counter struct {
		Count int
	}
	w, err := memoize.Wrap(newStore(t), func(pos []any, _ map[string]any) (any, error) {
		c := pos[0].(*counter)
		c.Count++
		return c.Count, nil
	}, memoize.Config{
		Name:   "counter.bump",
		Params: []string{"c"},
		Method: true,
	})
	require.NoError(t, err)

	_, err = w.Call(&counter{})

	var mutErr *memoize.NonCacheableMutationError
	require.ErrorAs(t, err, &mutErr)
	assert.True(t, mutErr.Method)
	assert.Contains(t, mutErr.Error(), "instance state")
}

func TestWrapCallErrors(t *testing.T) {
	w, err := memoize.Wrap(newStore(t), func(pos []any, _ map[string]any) (any, error) {
		return nil, nil
	}, memoize.Config{Name: "strict", Params: []string{"a", "b"}})
	require.NoError(t, err)

	t.Run("missing argument", func(t *testing.T) {
		_, err := w.Call(1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing argument")
	})

	t.Run("too many positional", func(t *testing.T) {
		_, err := w.Call(1, 2, 3)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at most")
	})

	t.Run("unknown named argument", func(t *testing.T) {
		_, err := w.CallNamed([]any{1, 2}, map[string]any{"c": 3})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected named argument")
	})

	t.Run("duplicate assignment", func(t *testing.T) {
		_, err := w.CallNamed([]any{1, 2}, map[string]any{"a": 1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "multiple values")
	})
}

func TestWrapFunctionError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	w, err := memoize.Wrap(newStore(t), func(pos []any, _ map[string]any) (any, error) {
		calls++
		return nil, boom
	}, memoize.Config{Name: "failing", Params: []string{"n"}})
	require.NoError(t, err)

	_, err = w.Call(1)
	require.ErrorIs(t, err, boom)

	// Failures are not cached; the next call executes again.
	_, err = w.Call(1)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestWrapConfigValidation(t *testing.T) {
	fn := func([]any, map[string]any) (any, error) { return nil, nil }
	store := newStore(t)

	cases := []struct {
		name  string
		store memoize.Store
		fn    memoize.Func
		cfg   memoize.Config
		field string
	}{
		{"nil store", nil, fn, memoize.Config{Name: "f"}, "store"},
		{"nil fn", store, nil, memoize.Config{Name: "f"}, "fn"},
		{"empty name", store, fn, memoize.Config{}, "Name"},
		{"duplicate params", store, fn, memoize.Config{Name: "f", Params: []string{"a", "a"}}, "Params"},
		{"method without receiver", store, fn, memoize.Config{Name: "f", Method: true}, "Method"},
		{"undeclared nocache", store, fn, memoize.Config{Name: "f", Params: []string{"a"}, Nocache: "b"}, "Nocache"},
		{"undeclared ignore", store, fn, memoize.Config{Name: "f", Params: []string{"a"}, Ignore: []string{"b"}}, "Ignore"},
		{"undeclared default", store, fn, memoize.Config{Name: "f", Params: []string{"a"}, Defaults: map[string]any{"b": 1}}, "Defaults"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := memoize.Wrap(tc.store, tc.fn, tc.cfg)
			var cfgErr *memoize.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tc.field, cfgErr.Field)
		})
	}
}

func TestWrapWithDeferredStore(t *testing.T) {
	b := newStore(t)
	d := bucket.NewDeferredWrite(b)

	calls := 0
	w, err := memoize.Wrap(d, func(pos []any, _ map[string]any) (any, error) {
		calls++
		return "v", nil
	}, memoize.Config{Name: "deferred", Params: []string{"n"}})
	require.NoError(t, err)

	_, err = w.Call(1)
	require.NoError(t, err)
	_, err = w.Call(1)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
