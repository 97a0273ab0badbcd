package atom

import (
	"encoding/binary"

	"github.com/larkspur/quadstore/qerr"
)

// dataMagic identifies a valid atoms.data file, matching spec.md §6's
// "magic ATOMSTOR".
const dataMagic = "ATOMSTOR"

// headerSize is the reserved prefix of the data file. 1 KiB per spec.md
// §4.1, laid out as: magic(8) | nextID(4) | writeCursor(8) | atomCount(8)
// | totalBytes(8), zero-padded to 1024 bytes.
const headerSize = 1024

const (
	offMagic       = 0
	offNextID      = 8
	offWriteCursor = 12
	offAtomCount   = 20
	offTotalBytes  = 28
)

// dataHeader is the in-memory mirror of the reserved header; its counters
// are read from the mmap on Open, held in atomic counters in Store while
// the store is open, and written back to the header only on Close.
type dataHeader struct{}

func readMagic(buf []byte) string {
	return string(buf[offMagic : offMagic+8])
}

func writeMagic(buf []byte) {
	copy(buf[offMagic:offMagic+8], dataMagic)
}

func readUint32(buf []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(buf[off : off+4])
}

func writeUint32(buf []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(buf[off:off+4], v)
}

func readUint64(buf []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(buf[off : off+8])
}

func writeUint64(buf []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(buf[off:off+8], v)
}

func checkMagic(buf []byte) error {
	if len(buf) < headerSize {
		return qerr.New(qerr.Corrupt, "atoms.data shorter than reserved header")
	}
	if readMagic(buf) != dataMagic {
		return qerr.New(qerr.Corrupt, "atoms.data magic mismatch")
	}
	return nil
}
