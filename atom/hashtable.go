package atom

import (
	"encoding/binary"
	"runtime"
	"sync/atomic"
	"unsafe"
)

// bucketSize is the on-disk/mmap layout of one hash-table slot:
// id(4) | hash(4) | length(4) | dataOffset(8) | padding(4) = 24 bytes.
// The id field sits at offset 0 so it can be CAS'd directly as a uint32
// view over the mapped bytes (4-byte aligned since bucketSize is a
// multiple of 4 and the index file's header is itself 32-byte aligned).
const bucketSize = 24

const (
	bucketOffID     = 0
	bucketOffHash   = 4
	bucketOffLen    = 8
	bucketOffOffset = 12
)

// indexMagic identifies a valid atoms.index file.
const indexMagic = "ATOMIDX\x00"

// indexHeaderSize holds magic(8) | bucketCount uint64(8) | probeLimit
// uint32(4) | padding(12), rounded up to 32 bytes.
const indexHeaderSize = 32

// defaultProbeLimit bounds linear probing, per spec.md §4.1 "bounded by a small
// constant".
const defaultProbeLimit = 64

// fnv1a32 computes the 32-bit FNV-1a hash of b, the hash function
// spec.md §4.1 names explicitly.
func fnv1a32(b []byte) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	h := uint32(offset32)
	for _, c := range b {
		h ^= uint32(c)
		h *= prime32
	}
	return h
}

// bucketAt returns the byte window for logical bucket index i within the
// mapped index file (after the header).
func (s *Store) bucketAt(i uint64) []byte {
	off := indexHeaderSize + i*bucketSize
	return s.indexMap[off : off+bucketSize]
}

// casID attempts to atomically transition a bucket's id field from 0
// (empty) to newID. It returns the observed-before value: 0 means success,
// anything else means the bucket was already claimed (possibly by the
// same id, which the caller checks separately).
func casID(bucket []byte, newID uint32) uint32 {
	ptr := (*uint32)(unsafe.Pointer(&bucket[bucketOffID]))
	if atomic.CompareAndSwapUint32(ptr, 0, newID) {
		return 0
	}
	return atomic.LoadUint32(ptr)
}

func loadID(bucket []byte) uint32 {
	ptr := (*uint32)(unsafe.Pointer(&bucket[bucketOffID]))
	return atomic.LoadUint32(ptr)
}

// bucketLocked is a sentinel id value marking a bucket whose slot has
// been claimed by a concurrent Intern but not yet finalized. The real
// atom id is allocated only once a goroutine is certain it won the
// bucket, so a lost race never burns an id (spec.md §3 "Atom ids are
// dense from 1 upward").
const bucketLocked = ^uint32(0)

// lockBucket attempts to transition a bucket's id field from empty (0)
// to the locked sentinel. The returned value is the id observed before
// the attempt: 0 means the caller now holds the lock, bucketLocked
// means another goroutine is mid-insert, anything else is an
// already-committed id.
func lockBucket(bucket []byte) uint32 {
	ptr := (*uint32)(unsafe.Pointer(&bucket[bucketOffID]))
	if atomic.CompareAndSwapUint32(ptr, 0, bucketLocked) {
		return 0
	}
	return atomic.LoadUint32(ptr)
}

// finalizeBucket publishes the real id into a bucket this goroutine
// locked via lockBucket, making it visible to Lookup/loadID. Callers
// must have already written hash/length/offset via fillBucket first.
func finalizeBucket(bucket []byte, id uint32) {
	ptr := (*uint32)(unsafe.Pointer(&bucket[bucketOffID]))
	atomic.StoreUint32(ptr, id)
}

// releaseBucket reverts a lockBucket claim back to empty. Used only
// when finalization can't complete (e.g. appendAtom failed), so the
// slot is available for another goroutine to claim.
func releaseBucket(bucket []byte) {
	ptr := (*uint32)(unsafe.Pointer(&bucket[bucketOffID]))
	atomic.StoreUint32(ptr, 0)
}

// spinUntilFinalized waits for a concurrently locked bucket to resolve,
// returning the id it settles on (0 if the locking goroutine released
// it after a failed append).
func spinUntilFinalized(bucket []byte) uint32 {
	for {
		id := loadID(bucket)
		if id != bucketLocked {
			return id
		}
		runtime.Gosched()
	}
}

func bucketHash(bucket []byte) uint32 {
	return binary.LittleEndian.Uint32(bucket[bucketOffHash : bucketOffHash+4])
}

func bucketLen(bucket []byte) uint32 {
	return binary.LittleEndian.Uint32(bucket[bucketOffLen : bucketOffLen+4])
}

func bucketDataOffset(bucket []byte) uint64 {
	return binary.LittleEndian.Uint64(bucket[bucketOffOffset : bucketOffOffset+8])
}

// fillBucket stores hash/length/offset after lockBucket (or, during a
// single-writer rehash, casID) has claimed the bucket's id slot. These
// three fields are write-once-per-bucket and only read once the id field
// is observed finalized (non-zero, non-locked), so a plain store (no
// atomics) is safe: any reader that sees a settled id via loadID has
// synchronized-after semantics with this write on every architecture Go
// supports for mmap'd memory accessed through atomic id operations on
// the same cache line.
func fillBucket(bucket []byte, hash, length uint32, dataOffset uint64) {
	binary.LittleEndian.PutUint32(bucket[bucketOffHash:bucketOffHash+4], hash)
	binary.LittleEndian.PutUint32(bucket[bucketOffLen:bucketOffLen+4], length)
	binary.LittleEndian.PutUint64(bucket[bucketOffOffset:bucketOffOffset+8], dataOffset)
}
