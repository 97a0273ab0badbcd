package bptree

import "encoding/binary"

// PageSize is the fixed page size backing every B+Tree file, per
// spec.md §4.2 "recommended 16 KiB".
const PageSize = 16384

// pageHeaderSize lays out {is_leaf(1) | pad(1) | entry_count uint16(2) |
// next_leaf_page_id uint32(4) | parent_page_id uint32(4)}, padded to 16
// bytes.
const pageHeaderSize = 16

const (
	offIsLeaf     = 0
	offEntryCount = 2
	offNextLeaf   = 4
	offParentPage = 8
)

// entrySize is the fixed-width entry layout. spec.md §4.2 describes a
// 3-component key plus an "8-bit child_or_value"; spec.md §6 separately
// requires the graph dimension to live inside the same three named
// index files (spo.db/pos.db/osp.db), which only works if the key
// itself carries the graph id as a leading component (§4.3's option
// (a)). We resolve both together (documented in DESIGN.md): every index
// is a 4-component key {graph, a, b, c} in the index's declared order,
// and "8-bit child_or_value" is read as 8 *bytes* (wide enough for a
// page id or presence flag) rather than 8 bits — giving a 4*4+8 = 24
// byte fixed-width entry.
const entrySize = 24

const (
	entryOffKeyA         = 0
	entryOffKeyB         = 4
	entryOffKeyC         = 8
	entryOffKeyD         = 12
	entryOffChildOrValue = 16
)

// maxEntries is how many fixed-width entries fit after the page header.
const maxEntries = (PageSize - pageHeaderSize) / entrySize

// pageID identifies a page by its 0-based position in the file.
type pageID uint32

const noPage pageID = 0xFFFFFFFF

// Key4 is a 4-component atom-id key: {graph, a, b, c} where a/b/c are
// subject/predicate/object permuted into the index's declared order
// (SPO, POS, or OSP — the order is the index identity, per spec.md §4.2
// "Ordering"). The default graph is atom id 0.
type Key4 [4]uint32

func (a Key4) less(b Key4) bool {
	for i := 0; i < 4; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func (a Key4) equal(b Key4) bool { return a == b }

// prefixMatch reports whether a matches b on its first n components.
func (a Key4) prefixMatch(b Key4, n int) bool {
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// page is a typed view over one PageSize window of the mmap'd file,
// spec.md §9's "typed view wrapper" resolution of the source's unsafe
// mmap pointer arithmetic — all access goes through bounds-checked slice
// indexing and encoding/binary, never raw pointers.
type page struct {
	buf []byte
}

func (p page) isLeaf() bool { return p.buf[offIsLeaf] != 0 }
func (p page) setLeaf(v bool) {
	if v {
		p.buf[offIsLeaf] = 1
	} else {
		p.buf[offIsLeaf] = 0
	}
}

func (p page) entryCount() int {
	return int(binary.LittleEndian.Uint16(p.buf[offEntryCount : offEntryCount+2]))
}

func (p page) setEntryCount(n int) {
	binary.LittleEndian.PutUint16(p.buf[offEntryCount:offEntryCount+2], uint16(n))
}

func (p page) nextLeaf() pageID {
	return pageID(binary.LittleEndian.Uint32(p.buf[offNextLeaf : offNextLeaf+4]))
}

func (p page) setNextLeaf(id pageID) {
	binary.LittleEndian.PutUint32(p.buf[offNextLeaf:offNextLeaf+4], uint32(id))
}

func (p page) parent() pageID {
	return pageID(binary.LittleEndian.Uint32(p.buf[offParentPage : offParentPage+4]))
}

func (p page) setParent(id pageID) {
	binary.LittleEndian.PutUint32(p.buf[offParentPage:offParentPage+4], uint32(id))
}

func (p page) entryOffset(i int) int { return pageHeaderSize + i*entrySize }

func (p page) keyAt(i int) Key4 {
	off := p.entryOffset(i)
	return Key4{
		binary.LittleEndian.Uint32(p.buf[off+entryOffKeyA : off+entryOffKeyA+4]),
		binary.LittleEndian.Uint32(p.buf[off+entryOffKeyB : off+entryOffKeyB+4]),
		binary.LittleEndian.Uint32(p.buf[off+entryOffKeyC : off+entryOffKeyC+4]),
		binary.LittleEndian.Uint32(p.buf[off+entryOffKeyD : off+entryOffKeyD+4]),
	}
}

func (p page) valueAt(i int) uint64 {
	off := p.entryOffset(i)
	return binary.LittleEndian.Uint64(p.buf[off+entryOffChildOrValue : off+entryOffChildOrValue+8])
}

func (p page) setEntry(i int, k Key4, v uint64) {
	off := p.entryOffset(i)
	binary.LittleEndian.PutUint32(p.buf[off+entryOffKeyA:off+entryOffKeyA+4], k[0])
	binary.LittleEndian.PutUint32(p.buf[off+entryOffKeyB:off+entryOffKeyB+4], k[1])
	binary.LittleEndian.PutUint32(p.buf[off+entryOffKeyC:off+entryOffKeyC+4], k[2])
	binary.LittleEndian.PutUint32(p.buf[off+entryOffKeyD:off+entryOffKeyD+4], k[3])
	binary.LittleEndian.PutUint64(p.buf[off+entryOffChildOrValue:off+entryOffChildOrValue+8], v)
}

func (p page) child(i int) pageID { return pageID(p.valueAt(i)) }

func (p page) tombstoned(i int) bool { return p.valueAt(i) == 0 }

// present/tombstone encoding for leaf entries: 1 = present, 0 = deleted.
const leafPresent uint64 = 1
const leafTombstone uint64 = 0

// insertAt shifts entries [i, count) right by one and writes k/v at i.
func (p page) insertAt(i int, k Key4, v uint64) {
	n := p.entryCount()
	for j := n; j > i; j-- {
		srcOff := p.entryOffset(j - 1)
		dstOff := p.entryOffset(j)
		copy(p.buf[dstOff:dstOff+entrySize], p.buf[srcOff:srcOff+entrySize])
	}
	p.setEntry(i, k, v)
	p.setEntryCount(n + 1)
}

// search returns the index of the first entry whose key >= target (the
// classic B-tree "lower bound" used for both point lookup and prefix
// scan positioning).
func (p page) search(target Key4) int {
	n := p.entryCount()
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		if p.keyAt(mid).less(target) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// searchInternal returns the index of the entry to descend into for
// target: the largest i with keyAt(i) <= target (internal entries own
// the half-open key range starting at their own key).
func (p page) searchInternal(target Key4) int {
	i := p.search(target)
	if i < p.entryCount() && p.keyAt(i).equal(target) {
		return i
	}
	return i - 1
}
