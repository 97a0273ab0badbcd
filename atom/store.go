package atom

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"
	mmap "github.com/edsrzf/mmap-go"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/larkspur/quadstore/qerr"
	"github.com/larkspur/quadstore/quadlog"
	"github.com/larkspur/quadstore/rdf"
)

// Config controls the on-disk geometry of a Store.
type Config struct {
	// InitialBuckets is the starting power-of-two bucket count for the
	// hash table. Defaults to 1<<16 when zero.
	InitialBuckets uint64 `yaml:"initial-buckets"`
	// ProbeLimit bounds linear probing before a bucket is declared
	// overflowed. Defaults to defaultProbeLimit when zero.
	ProbeLimit int `yaml:"probe-limit"`
	// InitialDataBytes sizes the initial data-file mapping (beyond the
	// reserved header). Defaults to 1 MiB when zero.
	InitialDataBytes int64 `yaml:"initial-data-bytes"`
}

func (c Config) withDefaults() Config {
	if c.InitialBuckets == 0 {
		c.InitialBuckets = 1 << 16
	}
	if c.ProbeLimit == 0 {
		c.ProbeLimit = defaultProbeLimit
	}
	if c.InitialDataBytes == 0 {
		c.InitialDataBytes = 1 << 20
	}
	return c
}

// Store is a persistent, memory-mapped atom store. Intern is safe for
// concurrent use from multiple goroutines; Lookup does not allocate, and
// Fetch returns a view of the mapped bytes rather than a copy.
type Store struct {
	cfg Config
	log log.Logger

	mu sync.RWMutex // guards file growth (remap); readers/interners take RLock

	dataFile   *os.File
	indexFile  *os.File
	offsetFile *os.File

	dataMap   mmap.MMap
	indexMap  mmap.MMap
	offsetMap mmap.MMap

	bucketCount uint64
	probeLimit  int

	nextID      atomic.Uint32
	writeCursor atomic.Uint64
	atomCount   atomic.Uint64
	totalBytes  atomic.Uint64
}

// Open opens (creating if absent) the atom store rooted at dir.
func Open(dir string, cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, qerr.Wrap(qerr.IO, err, "create atom store directory")
	}

	s := &Store{
		cfg:         cfg,
		log:         log.With(quadlog.Logger, "component", "atom"),
		bucketCount: cfg.InitialBuckets,
		probeLimit:  cfg.ProbeLimit,
	}

	var err error
	s.dataFile, err = openOrCreate(filepath.Join(dir, "atoms.data"))
	if err != nil {
		return nil, err
	}
	s.indexFile, err = openOrCreate(filepath.Join(dir, "atoms.index"))
	if err != nil {
		return nil, err
	}
	s.offsetFile, err = openOrCreate(filepath.Join(dir, "atoms.offset"))
	if err != nil {
		return nil, err
	}

	if err := s.initData(cfg.InitialDataBytes); err != nil {
		return nil, err
	}
	if err := s.initIndex(cfg.InitialBuckets); err != nil {
		return nil, err
	}
	if err := s.initOffset(); err != nil {
		return nil, err
	}

	level.Info(s.log).Log("msg", "atom store opened", "dir", dir,
		"atoms", s.atomCount.Load(), "bytes", humanize.Bytes(s.totalBytes.Load()))
	return s, nil
}

func openOrCreate(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, qerr.Wrap(qerr.IO, err, "open "+path)
	}
	return f, nil
}

func (s *Store) initData(initialBytes int64) error {
	fi, err := s.dataFile.Stat()
	if err != nil {
		return qerr.Wrap(qerr.IO, err, "stat atoms.data")
	}
	if fi.Size() == 0 {
		if err := s.dataFile.Truncate(headerSize + initialBytes); err != nil {
			return qerr.Wrap(qerr.IO, err, "grow atoms.data")
		}
	}
	m, err := mmap.Map(s.dataFile, mmap.RDWR, 0)
	if err != nil {
		return qerr.Wrap(qerr.IO, err, "mmap atoms.data")
	}
	s.dataMap = m

	if fi.Size() == 0 {
		writeMagic(s.dataMap)
		writeUint32(s.dataMap, offNextID, 1)
		writeUint64(s.dataMap, offWriteCursor, headerSize)
		s.nextID.Store(1)
		s.writeCursor.Store(headerSize)
		return nil
	}

	if err := checkMagic(s.dataMap); err != nil {
		return err
	}
	s.nextID.Store(readUint32(s.dataMap, offNextID))
	s.writeCursor.Store(readUint64(s.dataMap, offWriteCursor))
	s.atomCount.Store(readUint64(s.dataMap, offAtomCount))
	s.totalBytes.Store(readUint64(s.dataMap, offTotalBytes))
	return nil
}

func (s *Store) initIndex(buckets uint64) error {
	fi, err := s.indexFile.Stat()
	if err != nil {
		return qerr.Wrap(qerr.IO, err, "stat atoms.index")
	}
	wantSize := int64(indexHeaderSize) + int64(buckets)*bucketSize
	if fi.Size() == 0 {
		if err := s.indexFile.Truncate(wantSize); err != nil {
			return qerr.Wrap(qerr.IO, err, "grow atoms.index")
		}
	} else {
		s.bucketCount = uint64(fi.Size()-indexHeaderSize) / bucketSize
	}
	m, err := mmap.Map(s.indexFile, mmap.RDWR, 0)
	if err != nil {
		return qerr.Wrap(qerr.IO, err, "mmap atoms.index")
	}
	s.indexMap = m
	if fi.Size() == 0 {
		copy(s.indexMap[:8], indexMagic)
		writeUint64(s.indexMap, 8, s.bucketCount)
		writeUint32(s.indexMap, 16, uint32(s.probeLimit))
	} else if string(s.indexMap[:8]) != indexMagic {
		return qerr.New(qerr.Corrupt, "atoms.index magic mismatch")
	}
	return nil
}

func (s *Store) initOffset() error {
	fi, err := s.offsetFile.Stat()
	if err != nil {
		return qerr.Wrap(qerr.IO, err, "stat atoms.offset")
	}
	// The offset directory is indexed by id (1-based); entry 0 is unused
	// padding so offset[id] needs no subtraction on the hot path. Every
	// atom takes at least 4 bytes of the data file, which is not grown, so
	// sizing the directory from the data file's capacity leaves a slot for
	// every id that can ever be allocated.
	maxIDs := (int64(len(s.dataMap)) - headerSize) / 4
	need := (maxIDs + 2) * 8
	if fi.Size() < need {
		if err := s.offsetFile.Truncate(need); err != nil {
			return qerr.Wrap(qerr.IO, err, "grow atoms.offset")
		}
	}
	m, err := mmap.Map(s.offsetFile, mmap.RDWR, 0)
	if err != nil {
		return qerr.Wrap(qerr.IO, err, "mmap atoms.offset")
	}
	s.offsetMap = m
	return nil
}

// Close flushes and unmaps all backing files.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushHeader()
	var err error
	for _, m := range []mmap.MMap{s.dataMap, s.indexMap, s.offsetMap} {
		if m != nil {
			if e := m.Unmap(); e != nil && err == nil {
				err = e
			}
		}
	}
	for _, f := range []*os.File{s.dataFile, s.indexFile, s.offsetFile} {
		if e := f.Close(); e != nil && err == nil {
			err = e
		}
	}
	if err != nil {
		return qerr.Wrap(qerr.IO, err, "close atom store")
	}
	return nil
}

func (s *Store) flushHeader() {
	writeUint32(s.dataMap, offNextID, s.nextID.Load())
	writeUint64(s.dataMap, offWriteCursor, s.writeCursor.Load())
	writeUint64(s.dataMap, offAtomCount, s.atomCount.Load())
	writeUint64(s.dataMap, offTotalBytes, s.totalBytes.Load())
}

// Intern interns b, returning its id. Concurrent callers racing to intern
// the same bytes converge on the same id (§4.1 "pure function").
func (s *Store) Intern(b []byte) (rdf.AtomID, error) {
	h := fnv1a32(b)
	for {
		s.mu.RLock()
		id, needGrow, err := s.internOnce(b, h)
		s.mu.RUnlock()
		if err != nil {
			return 0, err
		}
		if !needGrow {
			return id, nil
		}
		if err := s.growIndex(); err != nil {
			return 0, err
		}
	}
}

func (s *Store) internOnce(b []byte, h uint32) (rdf.AtomID, bool, error) {
	start := h % uint64FromUint32(s.bucketCount)
	for probe := 0; probe < s.probeLimit; probe++ {
		idx := (start + uint64(probe)) % s.bucketCount
		bucket := s.bucketAt(idx)
		id := loadID(bucket)
		if id == bucketLocked {
			// A concurrent Intern is mid-insert for this bucket; wait for
			// it to finalize (or release) before comparing its contents.
			id = spinUntilFinalized(bucket)
			if id == 0 {
				probe--
				continue
			}
		}
		if id == 0 {
			switch before := lockBucket(bucket); before {
			case 0:
				// We won the race for this bucket: only now, with the
				// claim certain, allocate the id and fill in the
				// remaining fields. A goroutine that loses the race
				// below never reaches nextID.Inc, so no id is burned.
				newID := s.nextID.Inc() - 1
				off, err := s.appendAtom(b)
				if err != nil {
					releaseBucket(bucket)
					return 0, false, err
				}
				fillBucket(bucket, h, uint32(len(b)), off)
				s.recordOffset(newID, off)
				s.atomCount.Inc()
				finalizeBucket(bucket, newID)
				return rdf.AtomID(newID), false, nil
			case bucketLocked:
				// Someone else is mid-insert for this exact bucket; wait
				// for them to finalize (or release on a failed append)
				// and re-examine what ended up there.
				id = spinUntilFinalized(bucket)
				if id == 0 {
					probe--
					continue
				}
			default:
				// Someone else claimed this bucket first; give back our
				// slot in the probe sequence and re-examine what they
				// stored.
				id = before
			}
		}
		if bucketHash(bucket) == h && bucketLen(bucket) == uint32(len(b)) {
			off := bucketDataOffset(bucket)
			existing := s.rawAt(off, int(bucketLen(bucket)))
			if string(existing) == string(b) {
				return rdf.AtomID(id), false, nil
			}
		}
	}
	return 0, true, nil
}

func uint64FromUint32(v uint64) uint64 { return v }

// appendAtom writes a length-prefixed atom to the data file, growing it if
// necessary, and returns the byte offset the atom's length prefix starts
// at (its "data offset" per spec.md §4.1).
func (s *Store) appendAtom(b []byte) (uint64, error) {
	need := uint64(4 + len(b))
	for {
		cur := s.writeCursor.Load()
		if cur+need <= uint64(len(s.dataMap)) {
			if s.writeCursor.CAS(cur, cur+need) {
				writeUint32(s.dataMap, int(cur), uint32(len(b)))
				copy(s.dataMap[cur+4:cur+need], b)
				s.totalBytes.Add(need)
				return cur, nil
			}
			continue
		}
		return 0, qerr.New(qerr.Capacity, "atoms.data requires growth under writer lock")
	}
}

func (s *Store) recordOffset(id uint32, off uint64) {
	need := int64(id+1) * 8
	if need > int64(len(s.offsetMap)) {
		// initOffset sizes the directory for every id the data file can
		// hold, so this is not reached; the directory itself is never grown.
		return
	}
	writeUint64(s.offsetMap, int(id)*8, off)
}

func (s *Store) rawAt(off uint64, length int) []byte {
	return s.dataMap[off+4 : off+4+uint64(length)]
}

// growIndex doubles the bucket count and rehashes all live entries. This
// requires the exclusive lock: growth is rare relative to Intern's
// lock-free hot path, matching spec.md §4.1's description of the
// overflow path as "reported rather than blocked on" in the common case
// (overflow only forces growth, not a permanent stall).
func (s *Store) growIndex() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldMap := s.indexMap
	oldCount := s.bucketCount
	newCount := oldCount * 2

	if err := s.indexFile.Truncate(int64(indexHeaderSize) + int64(newCount)*bucketSize); err != nil {
		return qerr.Wrap(qerr.Capacity, err, "grow atoms.index")
	}
	if err := oldMap.Unmap(); err != nil {
		return qerr.Wrap(qerr.IO, err, "unmap atoms.index")
	}
	m, err := mmap.Map(s.indexFile, mmap.RDWR, 0)
	if err != nil {
		return qerr.Wrap(qerr.IO, err, "remap atoms.index")
	}
	s.indexMap = m
	writeUint64(s.indexMap, 8, newCount)

	// Rehash: read every occupied bucket out of the doubled-but-not-yet-
	// redistributed table and reinsert at its new position. Because the
	// table doubled in place, old buckets [0, oldCount) still hold their
	// entries; we redistribute into [0, newCount).
	type entry struct {
		id, hash, length uint32
		off              uint64
	}
	var entries []entry
	for i := uint64(0); i < oldCount; i++ {
		b := s.indexMap[indexHeaderSize+i*bucketSize : indexHeaderSize+(i+1)*bucketSize]
		if id := loadID(b); id != 0 {
			entries = append(entries, entry{id, bucketHash(b), bucketLen(b), bucketDataOffset(b)})
		}
	}
	// Zero the region so re-insertion sees empty buckets.
	for i := range s.indexMap[indexHeaderSize:] {
		s.indexMap[indexHeaderSize+i] = 0
	}
	copy(s.indexMap[:8], indexMagic)
	writeUint64(s.indexMap, 8, newCount)
	writeUint32(s.indexMap, 16, uint32(s.probeLimit))

	s.bucketCount = newCount
	for _, e := range entries {
		start := uint64(e.hash) % newCount
		placed := false
		for probe := 0; probe < s.probeLimit; probe++ {
			idx := (start + uint64(probe)) % newCount
			b := s.bucketAt(idx)
			if loadID(b) == 0 {
				casID(b, e.id)
				fillBucket(b, e.hash, e.length, e.off)
				placed = true
				break
			}
		}
		if !placed {
			return qerr.New(qerr.Capacity, "atoms.index rehash could not place entry within probe limit")
		}
	}
	return nil
}

// Lookup returns the id for b if already interned, without allocating.
func (s *Store) Lookup(b []byte) (rdf.AtomID, bool) {
	h := fnv1a32(b)
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := h % s.bucketCount
	for probe := 0; probe < s.probeLimit; probe++ {
		idx := (start + uint64(probe)) % s.bucketCount
		bucket := s.bucketAt(idx)
		id := loadID(bucket)
		if id == bucketLocked {
			// A concurrent Intern is mid-claim for this exact bucket;
			// wait for it to settle before deciding whether the probe
			// chain continues past this slot.
			id = spinUntilFinalized(bucket)
		}
		if id == 0 {
			return 0, false
		}
		if bucketHash(bucket) == h && bucketLen(bucket) == uint32(len(b)) {
			off := bucketDataOffset(bucket)
			if string(s.rawAt(off, int(bucketLen(bucket)))) == string(b) {
				return rdf.AtomID(id), true
			}
		}
	}
	return 0, false
}

// Fetch returns a borrowed view of the bytes for id, valid as long as the
// Store remains open and ungrown; callers that retain it must copy.
func (s *Store) Fetch(id rdf.AtomID) ([]byte, error) {
	if id == 0 {
		return nil, qerr.New(qerr.Semantic, "atom id 0 is reserved")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if uint32(id) >= uint32(len(s.offsetMap)/8) {
		return nil, qerr.Newf(qerr.Semantic, "atom id %d out of range", id)
	}
	off := readUint64(s.offsetMap, int(id)*8)
	if off == 0 && id != 0 {
		// id 0's slot is unused padding; any other zero offset means the
		// directory was never populated for this id (corrupt or stale).
		return nil, errors.Errorf("atom id %d has no recorded offset", id)
	}
	length := readUint32(s.dataMap, int(off))
	return s.dataMap[off+4 : off+4+uint64(length)], nil
}

// Stats reports the counters spec.md §4.3 requires for planner use.
type Stats struct {
	AtomCount  uint64
	TotalBytes uint64
	NextID     uint32
}

func (s *Store) Stats() Stats {
	return Stats{
		AtomCount:  s.atomCount.Load(),
		TotalBytes: s.totalBytes.Load(),
		NextID:     s.nextID.Load(),
	}
}
