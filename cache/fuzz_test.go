package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// Fuzz Load/Read/Cancel/Remove semantics under arbitrary string inputs.
// Guards against panics and ensures core invariants hold.
// NOTE: key/value lengths are capped to avoid pathological memory usage
// during fuzzing (this does not weaken the invariants we check).
func FuzzCache_LoadReadRemove(f *testing.F) {
	// Seed corpus: empty, ASCII, Unicode, long strings, failing key.
	f.Add("", "")
	f.Add("a", "1")
	f.Add("b", "2")
	f.Add("αβγ", "δ")
	f.Add("emoji🙂", "🙂🙂")
	f.Add("long", strings.Repeat("x", 1024))
	f.Add("fail", "")

	f.Fuzz(func(t *testing.T, k, v string) {
		const limit = 1 << 12 // 4096
		if len(k) > limit {
			k = k[:limit]
		}
		if len(v) > limit {
			v = v[:limit]
		}

		boom := errors.New("boom")
		c, err := New(func(_ context.Context, key string, _ ...any) (string, error) {
			if strings.HasPrefix(key, "fail") {
				return "", boom
			}
			return v, nil
		}, Options[string, string]{Capacity: 4})
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = c.Close() })

		if st := c.Read(k); st != nil {
			t.Fatalf("fresh cache must miss, got %v", st.Status())
		}

		st, err := c.Load(context.Background(), k)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if strings.HasPrefix(k, "fail") {
			if st.Status() != StatusError || !errors.Is(st.Err(), boom) {
				t.Fatalf("want error state, got %v %v", st.Status(), st.Err())
			}
		} else {
			got, ok := st.Value()
			if st.Status() != StatusSuccess || !ok || got != v {
				t.Fatalf("after Load: want %q, got %q ok=%v status=%v", v, got, ok, st.Status())
			}
		}
		if c.Read(k) != st {
			t.Fatal("Read must return the settled state object")
		}

		// Cancel on a settled entry is a no-op.
		c.Cancel(k)
		if c.Read(k) != st {
			t.Fatal("Cancel must not un-settle an entry")
		}

		if !c.Remove(k) {
			t.Fatal("Remove must return true")
		}
		if c.Read(k) != nil {
			t.Fatal("key must be absent after Remove")
		}
		if c.Remove(k) {
			t.Fatal("second Remove must return false")
		}
	})
}
