package bptree

import (
	"encoding/binary"
	"os"
	"sync"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/larkspur/quadstore/qerr"
)

// metaMagic identifies a valid index file.
const metaMagic = "BPTREE\x00\x00"

// Meta page (page 0) layout: magic(8) | rootPageID uint32(4) |
// pageCount uint32(4) | height uint32(4) | nextFreePage uint32(4).
const (
	metaOffRoot   = 8
	metaOffCount  = 12
	metaOffHeight = 16
)

// Tree is a single ordered B+Tree over 4-component atom-id keys (graph
// leading, then the index's permutation of subject/predicate/object),
// mmap backed. A Tree is single-writer/multi-reader: callers serialize
// Insert calls themselves (the multi-index store holds the writer lock
// for the whole batch commit, per spec.md §4.3).
type Tree struct {
	mu sync.RWMutex

	file *os.File
	data mmap.MMap

	root      pageID
	pageCount uint32
	height    uint32
}

// Open opens or creates the tree file at path.
func Open(path string) (*Tree, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, qerr.Wrap(qerr.IO, err, "open "+path)
	}
	t := &Tree{file: f}
	fi, err := f.Stat()
	if err != nil {
		return nil, qerr.Wrap(qerr.IO, err, "stat "+path)
	}
	if fi.Size() == 0 {
		if err := t.bootstrap(); err != nil {
			return nil, err
		}
	} else {
		if err := t.mapExisting(fi.Size()); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Tree) bootstrap() error {
	const initialPages = 4 // meta + one root leaf + headroom
	if err := t.file.Truncate(int64(initialPages) * PageSize); err != nil {
		return qerr.Wrap(qerr.Capacity, err, "allocate initial tree pages")
	}
	m, err := mmap.Map(t.file, mmap.RDWR, 0)
	if err != nil {
		return qerr.Wrap(qerr.IO, err, "mmap tree file")
	}
	t.data = m
	copy(t.data[:8], metaMagic)
	t.root = 1
	t.pageCount = initialPages
	t.height = 1
	t.writeMeta()
	t.setNextFreePage(2)

	root := t.pageAt(1)
	root.setLeaf(true)
	root.setEntryCount(0)
	root.setNextLeaf(noPage)
	root.setParent(noPage)
	return nil
}

func (t *Tree) mapExisting(size int64) error {
	m, err := mmap.Map(t.file, mmap.RDWR, 0)
	if err != nil {
		return qerr.Wrap(qerr.IO, err, "mmap tree file")
	}
	t.data = m
	if len(t.data) < 8 || string(t.data[:8]) != metaMagic {
		return qerr.New(qerr.Corrupt, "b+tree index magic mismatch")
	}
	t.root = pageID(binary.LittleEndian.Uint32(t.data[metaOffRoot : metaOffRoot+4]))
	t.pageCount = binary.LittleEndian.Uint32(t.data[metaOffCount : metaOffCount+4])
	t.height = binary.LittleEndian.Uint32(t.data[metaOffHeight : metaOffHeight+4])
	if int64(t.pageCount)*PageSize != size {
		return qerr.New(qerr.Corrupt, "b+tree index page count does not match file size")
	}
	return nil
}

func (t *Tree) writeMeta() {
	binary.LittleEndian.PutUint32(t.data[metaOffRoot:metaOffRoot+4], uint32(t.root))
	binary.LittleEndian.PutUint32(t.data[metaOffCount:metaOffCount+4], t.pageCount)
	binary.LittleEndian.PutUint32(t.data[metaOffHeight:metaOffHeight+4], t.height)
}

// Close unmaps and closes the backing file.
func (t *Tree) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.data.Unmap(); err != nil {
		return qerr.Wrap(qerr.IO, err, "unmap tree file")
	}
	if err := t.file.Close(); err != nil {
		return qerr.Wrap(qerr.IO, err, "close tree file")
	}
	return nil
}

func (t *Tree) pageAt(id pageID) page {
	off := int64(id) * PageSize
	return page{buf: t.data[off : off+PageSize]}
}

// grow doubles the file (and hence page capacity) via unmap/truncate/
// remap, per spec.md §4.2 "File growth: Doubling".
func (t *Tree) grow() error {
	newCount := t.pageCount * 2
	if err := t.data.Unmap(); err != nil {
		return qerr.Wrap(qerr.IO, err, "unmap tree file for growth")
	}
	if err := t.file.Truncate(int64(newCount) * PageSize); err != nil {
		return qerr.Wrap(qerr.Capacity, err, "grow tree file")
	}
	m, err := mmap.Map(t.file, mmap.RDWR, 0)
	if err != nil {
		return qerr.Wrap(qerr.IO, err, "remap tree file")
	}
	t.data = m
	t.pageCount = newCount
	t.writeMeta()
	return nil
}

func (t *Tree) allocPage() (pageID, error) {
	// The file doubles only when the allocation cursor reaches capacity,
	// so growth happens once per doubling rather than on every split.
	if t.nextFreePage() >= t.pageCount {
		if err := t.grow(); err != nil {
			return 0, err
		}
	}
	id := t.nextFreePage()
	t.setNextFreePage(id + 1)
	return id, nil
}

// Pages are allocated densely starting at 1 (page 0 is meta); the next
// free page is an allocation cursor kept in its own meta slot right after
// the height field, separate from pageCount, which is the file's page
// capacity. A freed internal/leaf page is never reclaimed (tombstoning
// is logical, per spec.md §3 "Lifecycles").
func (t *Tree) nextFreePage() pageID {
	return pageID(binary.LittleEndian.Uint32(t.data[metaOffHeight+4 : metaOffHeight+8]))
}

func (t *Tree) setNextFreePage(id pageID) {
	binary.LittleEndian.PutUint32(t.data[metaOffHeight+4:metaOffHeight+8], uint32(id))
}
