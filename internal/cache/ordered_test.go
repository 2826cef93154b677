package cache

import (
	"testing"
	"time"
)

func TestOrderedMap_InsertionOrder(t *testing.T) {
	m := newOrderedMap[string, int](4)
	now := time.Now()

	tests := []struct {
		name string
		op   func()
		want []string
	}{
		{
			name: "append keeps insertion order",
			op: func() {
				m.put("a", 1, now)
				m.put("b", 2, now)
				m.put("c", 3, now)
			},
			want: []string{"a", "b", "c"},
		},
		{
			name: "lookup does not reorder",
			op: func() {
				m.get("a")
				m.get("a")
			},
			want: []string{"a", "b", "c"},
		},
		{
			name: "reinsert moves key to the tail",
			op:   func() { m.put("a", 10, now) },
			want: []string{"b", "c", "a"},
		},
		{
			name: "remove from the middle",
			op:   func() { m.remove("c") },
			want: []string{"b", "a"},
		},
		{
			name: "remove oldest",
			op:   func() { m.removeOldest() },
			want: []string{"a"},
		},
		{
			name: "remove last element",
			op:   func() { m.removeOldest() },
			want: []string{},
		},
		{
			name: "append after empty",
			op:   func() { m.put("d", 4, now) },
			want: []string{"d"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.op()
			got := m.keys()
			if len(got) != len(tt.want) || m.len() != len(tt.want) {
				t.Fatalf("keys() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("keys() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestOrderedMap_ReinsertReplacesEntry(t *testing.T) {
	m := newOrderedMap[string, int](2)
	t0 := time.Now()
	m.put("a", 1, t0)
	m.put("a", 2, t0.Add(time.Second))

	e, ok := m.get("a")
	if !ok {
		t.Fatal("expected a to exist")
	}
	if e.Value != 2 || !e.InsertedAt.Equal(t0.Add(time.Second)) {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if m.len() != 1 {
		t.Fatalf("expected 1 entry, got %d", m.len())
	}
}

func TestOrderedMap_RemoveMissing(t *testing.T) {
	m := newOrderedMap[int, int](0)
	if m.remove(1) {
		t.Fatal("remove of a missing key reported true")
	}
	m.removeOldest()
	if m.oldest() != nil {
		t.Fatal("expected empty map")
	}
}

func TestOrderedMap_Clear(t *testing.T) {
	m := newOrderedMap[int, int](0)
	for i := 0; i < 5; i++ {
		m.put(i, i, time.Now())
	}
	m.clear()
	if m.len() != 0 || m.oldest() != nil || len(m.keys()) != 0 {
		t.Fatal("expected clear to empty the map")
	}
	m.put(9, 9, time.Now())
	if got := m.keys(); len(got) != 1 || got[0] != 9 {
		t.Fatalf("keys() after clear = %v", got)
	}
}
