package keypath

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	t.Run("single", func(t *testing.T) {
		keys, err := ParsePath("a")
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, keys)
	})
	t.Run("nested", func(t *testing.T) {
		keys, err := ParsePath("user.address.city")
		require.NoError(t, err)
		assert.Equal(t, []string{"user", "address", "city"}, keys)
	})
	t.Run("empty", func(t *testing.T) {
		_, err := ParsePath("")
		assert.ErrorIs(t, err, ErrInvalidPath)
	})
	t.Run("empty segment", func(t *testing.T) {
		for _, p := range []string{"a..b", ".a", "a."} {
			_, err := ParsePath(p)
			assert.ErrorIs(t, err, ErrInvalidPath, p)
		}
	})
}

func TestGetNested(t *testing.T) {
	root := map[string]any{
		"a": 1,
		"user": map[string]any{
			"name": "john",
			"tags": []any{"x", map[string]any{"k": "v"}},
		},
	}
	tests := []struct {
		name  string
		keys  []string
		value any
		found bool
	}{
		{"no keys", nil, root, true},
		{"top", []string{"a"}, 1, true},
		{"nested", []string{"user", "name"}, "john", true},
		{"index", []string{"user", "tags", "0"}, "x", true},
		{"through index", []string{"user", "tags", "1", "k"}, "v", true},
		{"missing key", []string{"user", "age"}, nil, false},
		{"through scalar", []string{"a", "b"}, nil, false},
		{"index out of range", []string{"user", "tags", "5"}, nil, false},
		{"negative index", []string{"user", "tags", "-1"}, nil, false},
		{"non numeric index", []string{"user", "tags", "x"}, nil, false},
		{"through missing", []string{"nope", "deeper", "deepest"}, nil, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			v, ok := GetNested(test.keys, root)
			assert.Equal(t, test.found, ok)
			assert.Equal(t, test.value, v)
		})
	}
	t.Run("nil value present", func(t *testing.T) {
		v, ok := GetNested([]string{"n"}, map[string]any{"n": nil})
		assert.True(t, ok)
		assert.Nil(t, v)
	})
}

func TestSetNested(t *testing.T) {
	t.Run("updates leaf", func(t *testing.T) {
		root := map[string]any{"a": 1, "b": 2}
		res, err := SetNested([]string{"a"}, root, func(v any) any { return v.(int) + 1 })
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": 2, "b": 2}, res)
		assert.Equal(t, 1, root["a"])
	})
	t.Run("clones spine only", func(t *testing.T) {
		sibling := map[string]any{"x": 1}
		inner := map[string]any{"c": 1}
		root := map[string]any{"a": map[string]any{"b": inner}, "s": sibling}

		res, err := SetNested([]string{"a", "b", "c"}, root, func(any) any { return 5 })
		require.NoError(t, err)

		m := res.(map[string]any)
		assert.True(t, sameMap(sibling, m["s"].(map[string]any)))
		assert.False(t, sameMap(root, m))
		assert.False(t, sameMap(inner, m["a"].(map[string]any)["b"].(map[string]any)))
		assert.Equal(t, 5, m["a"].(map[string]any)["b"].(map[string]any)["c"])
		assert.Equal(t, 1, inner["c"])
	})
	t.Run("creates missing containers", func(t *testing.T) {
		res, err := SetNested([]string{"a", "b"}, map[string]any{}, func(v any) any {
			assert.Nil(t, v)
			return "new"
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": map[string]any{"b": "new"}}, res)
	})
	t.Run("replaces scalar intermediate", func(t *testing.T) {
		res, err := SetNested([]string{"a", "b"}, map[string]any{"a": 3}, func(any) any { return 1 })
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": map[string]any{"b": 1}}, res)
	})
	t.Run("non container root", func(t *testing.T) {
		res, err := SetNested([]string{"a"}, nil, func(any) any { return 1 })
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": 1}, res)
	})
	t.Run("slice index", func(t *testing.T) {
		items := []any{"a", "b", "c"}
		res, err := SetNested([]string{"1"}, items, func(v any) any { return v.(string) + "!" })
		require.NoError(t, err)
		assert.Equal(t, []any{"a", "b!", "c"}, res)
		assert.Equal(t, []any{"a", "b", "c"}, items)
	})
	t.Run("slice grows", func(t *testing.T) {
		items := []any{"a"}
		res, err := SetNested([]string{"1"}, items, func(v any) any {
			assert.Nil(t, v)
			return "b"
		})
		require.NoError(t, err)
		assert.Equal(t, []any{"a", "b"}, res)
		assert.Equal(t, []any{"a"}, items)

		res, err = SetNested([]string{"0", "name"}, []any{}, func(any) any { return "x" })
		require.NoError(t, err)
		assert.Equal(t, []any{map[string]any{"name": "x"}}, res)
	})
	t.Run("slice index out of range", func(t *testing.T) {
		for _, key := range []string{"3", "1000000000", "99999999999999", "9223372036854775807", "99999999999999999999"} {
			var err error
			assert.NotPanics(t, func() {
				_, err = SetNested([]string{key}, []any{1, 2}, func(any) any { return 0 })
			}, key)
			assert.ErrorIs(t, err, ErrInvalidPath, key)
		}
	})
	t.Run("slice invalid index", func(t *testing.T) {
		_, err := SetNested([]string{"x"}, []any{"a"}, func(any) any { return 1 })
		assert.ErrorIs(t, err, ErrInvalidPath)
		_, err = SetNested([]string{"list", "-1"}, map[string]any{"list": []any{}}, func(any) any { return 1 })
		assert.ErrorIs(t, err, ErrInvalidPath)
	})
	t.Run("no keys", func(t *testing.T) {
		res, err := SetNested(nil, 1, func(v any) any { return v.(int) * 10 })
		require.NoError(t, err)
		assert.Equal(t, 10, res)
	})
}

func TestClone(t *testing.T) {
	m := map[string]any{"a": 1}
	c := Clone(m).(map[string]any)
	c["a"] = 2
	assert.Equal(t, 1, m["a"])

	s := []any{1}
	cs := Clone(s).([]any)
	cs[0] = 2
	assert.Equal(t, 1, s[0])

	assert.Equal(t, "x", Clone("x"))
}

func sameMap(a, b map[string]any) bool {
	return reflect.ValueOf(a).UnsafePointer() == reflect.ValueOf(b).UnsafePointer()
}
