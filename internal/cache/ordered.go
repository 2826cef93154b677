package cache

import "time"

// node is an element of the insertion-ordered list. Nodes are never moved
// after being appended; re-inserting a key unlinks the old node and appends a
// new one at the tail.
type node[K comparable, V any] struct {
	key   K
	entry Entry[V]

	prev *node[K, V]
	next *node[K, V]
}

// orderedMap is a hash index over an intrusive doubly linked list. Head is
// the oldest insertion, tail the newest. Lookups do not reorder nodes, which
// is what makes the store FIFO rather than LRU.
type orderedMap[K comparable, V any] struct {
	index map[K]*node[K, V]
	head  *node[K, V]
	tail  *node[K, V]
}

func newOrderedMap[K comparable, V any](sizeHint int) *orderedMap[K, V] {
	return &orderedMap[K, V]{index: make(map[K]*node[K, V], sizeHint)}
}

func (m *orderedMap[K, V]) len() int { return len(m.index) }

func (m *orderedMap[K, V]) get(key K) (Entry[V], bool) {
	n, ok := m.index[key]
	if !ok {
		return Entry[V]{}, false
	}
	return n.entry, true
}

// put stores value under key at the tail. An existing node for key is
// unlinked first so the key takes the newest position.
func (m *orderedMap[K, V]) put(key K, value V, at time.Time) {
	if old, ok := m.index[key]; ok {
		m.unlink(old)
	}
	n := &node[K, V]{key: key, entry: Entry[V]{Value: value, InsertedAt: at}}
	m.index[key] = n
	if m.tail == nil {
		m.head = n
		m.tail = n
		return
	}
	n.prev = m.tail
	m.tail.next = n
	m.tail = n
}

func (m *orderedMap[K, V]) remove(key K) bool {
	n, ok := m.index[key]
	if !ok {
		return false
	}
	delete(m.index, key)
	m.unlink(n)
	return true
}

// oldest returns the head node, or nil when empty.
func (m *orderedMap[K, V]) oldest() *node[K, V] { return m.head }

func (m *orderedMap[K, V]) removeOldest() {
	if m.head == nil {
		return
	}
	delete(m.index, m.head.key)
	m.unlink(m.head)
}

func (m *orderedMap[K, V]) clear() {
	m.index = make(map[K]*node[K, V])
	m.head = nil
	m.tail = nil
}

func (m *orderedMap[K, V]) keys() []K {
	out := make([]K, 0, len(m.index))
	for n := m.head; n != nil; n = n.next {
		out = append(out, n.key)
	}
	return out
}

func (m *orderedMap[K, V]) unlink(n *node[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		m.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		m.tail = n.prev
	}
	n.prev = nil
	n.next = nil
}
