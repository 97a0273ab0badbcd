package bptree

import "github.com/larkspur/quadstore/qerr"

// Insert adds key to the tree (a presence marker, not a value store —
// spec.md §4.2 "Ordered persistent map from a key to a presence
// marker"). Re-inserting an already-present key is a no-op.
func (t *Tree) Insert(k Key4) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.insertLocked(k)
}

func (t *Tree) insertLocked(k Key4) error {
	leafID, path, err := t.descendToLeaf(k)
	if err != nil {
		return err
	}
	leaf := t.pageAt(leafID)
	i := leaf.search(k)
	if i < leaf.entryCount() && leaf.keyAt(i).equal(k) {
		leaf.setEntry(i, k, leafPresent) // resurrect a tombstone if present
		return nil
	}
	if leaf.entryCount() < maxEntries {
		leaf.insertAt(i, k, leafPresent)
		return nil
	}
	return t.splitLeafAndInsert(leafID, path, k)
}

// descendToLeaf walks from the root to the leaf that would contain k,
// recording the path of internal page ids for use during a split's
// promotion walk.
func (t *Tree) descendToLeaf(k Key4) (pageID, []pageID, error) {
	var path []pageID
	cur := t.root
	for {
		p := t.pageAt(cur)
		if p.isLeaf() {
			return cur, path, nil
		}
		path = append(path, cur)
		if p.entryCount() == 0 {
			return 0, nil, qerr.New(qerr.Corrupt, "internal page with no entries")
		}
		i := p.searchInternal(k)
		if i < 0 {
			i = 0
		}
		cur = p.child(i)
	}
}

// splitLeafAndInsert splits an overfull leaf, inserts k into whichever
// half it belongs in, and promotes the right half's first key upward,
// recursively splitting ancestors as needed (spec.md §4.2 "If promotion
// overfills the internal node, recursively split").
func (t *Tree) splitLeafAndInsert(leafID pageID, path []pageID, k Key4) error {
	// Allocate first: allocPage may grow (and remap) the file, which would
	// invalidate any page view taken before it.
	rightID, err := t.allocPage()
	if err != nil {
		return err
	}
	leaf := t.pageAt(leafID)
	mid := leaf.entryCount() / 2
	right := t.pageAt(rightID)
	right.setLeaf(true)
	right.setParent(leaf.parent())
	right.setNextLeaf(leaf.nextLeaf())

	n := leaf.entryCount()
	for i := mid; i < n; i++ {
		right.insertAt(i-mid, leaf.keyAt(i), leaf.valueAt(i))
	}
	leaf.setEntryCount(mid)
	leaf.setNextLeaf(rightID)

	promoted := right.keyAt(0)

	target := leaf
	targetID := leafID
	if !k.less(promoted) {
		target = right
		targetID = rightID
	}
	i := target.search(k)
	if i < target.entryCount() && target.keyAt(i).equal(k) {
		target.setEntry(i, k, leafPresent)
	} else {
		target.insertAt(i, k, leafPresent)
	}
	_ = targetID

	return t.promote(path, leafID, rightID, promoted)
}

// promote inserts (promotedKey -> rightID) into the parent named by the
// tail of path (path[len(path)-1] is leafID/internalID's parent), or
// allocates a new root if there is no parent.
func (t *Tree) promote(path []pageID, leftID, rightID pageID, promotedKey Key4) error {
	if len(path) == 0 {
		return t.newRoot(leftID, rightID, promotedKey)
	}
	parentID := path[len(path)-1]
	parent := t.pageAt(parentID)

	i := parent.search(promotedKey)
	if parent.entryCount() < maxEntries {
		parent.insertAt(i, promotedKey, uint64(rightID))
		t.pageAt(rightID).setParent(parentID)
		return nil
	}

	// Parent is full: split it the same way, then promote one level up.
	mid := parent.entryCount() / 2
	newRightID, err := t.allocPage()
	if err != nil {
		return err
	}
	parent = t.pageAt(parentID) // allocPage may have remapped the file
	newRight := t.pageAt(newRightID)
	newRight.setLeaf(false)
	newRight.setParent(parent.parent())

	n := parent.entryCount()
	for j := mid; j < n; j++ {
		newRight.insertAt(j-mid, parent.keyAt(j), parent.valueAt(j))
		t.pageAt(pageID(parent.valueAt(j))).setParent(newRightID)
	}
	parent.setEntryCount(mid)

	midKey := newRight.keyAt(0)
	if promotedKey.less(midKey) {
		j := parent.search(promotedKey)
		parent.insertAt(j, promotedKey, uint64(rightID))
		t.pageAt(rightID).setParent(parentID)
	} else {
		j := newRight.search(promotedKey)
		newRight.insertAt(j, promotedKey, uint64(rightID))
		t.pageAt(rightID).setParent(newRightID)
	}

	return t.promote(path[:len(path)-1], parentID, newRightID, midKey)
}

func (t *Tree) newRoot(leftID, rightID pageID, splitKey Key4) error {
	rootID, err := t.allocPage()
	if err != nil {
		return err
	}
	root := t.pageAt(rootID)
	root.setLeaf(false)
	root.setParent(noPage)
	// entry 0's key is a routing sentinel: any key less than splitKey
	// still resolves to leftID because searchInternal falls back to
	// index -1 -> clamped to 0 when no entry key is <= target.
	root.insertAt(0, Key4{0, 0, 0, 0}, uint64(leftID))
	root.insertAt(1, splitKey, uint64(rightID))

	t.pageAt(leftID).setParent(rootID)
	t.pageAt(rightID).setParent(rootID)

	t.root = rootID
	t.height++
	t.writeMeta()
	return nil
}

// Lookup reports whether k is present (and not tombstoned).
func (t *Tree) Lookup(k Key4) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	leafID, _, err := t.descendToLeaf(k)
	if err != nil {
		return false, err
	}
	leaf := t.pageAt(leafID)
	i := leaf.search(k)
	if i < leaf.entryCount() && leaf.keyAt(i).equal(k) {
		return !leaf.tombstoned(i), nil
	}
	return false, nil
}

// Delete tombstones k if present. Deleted entries remain invisible but
// occupy space until compaction, per spec.md §3 "Lifecycles".
func (t *Tree) Delete(k Key4) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	leafID, _, err := t.descendToLeaf(k)
	if err != nil {
		return err
	}
	leaf := t.pageAt(leafID)
	i := leaf.search(k)
	if i < leaf.entryCount() && leaf.keyAt(i).equal(k) {
		leaf.setEntry(i, k, leafTombstone)
	}
	return nil
}

// Iterator walks live (non-tombstoned) keys across the leaf linked list
// within a bounded key prefix, per spec.md §4.2 "scan(prefix)".
type Iterator struct {
	tree      *Tree
	prefix    Key4
	prefixLen int
	leaf      pageID
	idx       int
	done      bool
}

// Scan returns an iterator over all live keys sharing the first
// prefixLen components with prefix (prefixLen in [0,3]; 0 means a full
// scan).
func (t *Tree) Scan(prefix Key4, prefixLen int) (*Iterator, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	leafID, _, err := t.descendToLeaf(prefix)
	if err != nil {
		return nil, err
	}
	return &Iterator{tree: t, prefix: prefix, prefixLen: prefixLen, leaf: leafID, idx: -1}, nil
}

// Next advances the iterator, returning false when exhausted. Safe to
// call under the tree's read lock held by the caller for the iterator's
// whole lifetime (spec.md §4.3 "A query holds shared for the duration of
// its iterator").
func (it *Iterator) Next() (Key4, bool) {
	if it.done {
		return Key4{}, false
	}
	it.tree.mu.RLock()
	defer it.tree.mu.RUnlock()
	for {
		leaf := it.tree.pageAt(it.leaf)
		it.idx++
		if it.idx >= leaf.entryCount() {
			next := leaf.nextLeaf()
			if next == noPage {
				it.done = true
				return Key4{}, false
			}
			it.leaf = next
			it.idx = -1
			continue
		}
		k := leaf.keyAt(it.idx)
		if it.prefixLen > 0 && !k.prefixMatch(it.prefix, it.prefixLen) {
			if k.less(it.prefix) {
				continue // not yet at the prefix range
			}
			it.done = true
			return Key4{}, false
		}
		if leaf.tombstoned(it.idx) {
			continue
		}
		return k, true
	}
}
