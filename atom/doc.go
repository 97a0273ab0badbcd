// Package atom implements the atom store: a persistent, memory-mapped,
// bidirectional mapping between byte sequences and dense 32-bit ids.
//
// Three files back a Store, mirroring spec.md §6's on-disk format:
//
//   - <dir>/atoms.data:   length-prefixed UTF-8 bytes in id order, with a
//     1 KiB reserved header (magic, next-id counter, write cursor, atom
//     count, total bytes).
//   - <dir>/atoms.index:  an open-addressed hash table over {id, hash,
//     length, data_offset} buckets, linear-probed.
//   - <dir>/atoms.offset: an O(1) id -> data_offset array, the "offset
//     directory" spec.md §4.1 requires for constant-time Fetch.
//
// All three are mmap-backed (github.com/edsrzf/mmap-go) so Fetch returns
// a borrowed view straight over mapped memory with no copy, in the same
// spirit as friggdb's backend.Appender/Iterator borrowed-slice contracts.
package atom
