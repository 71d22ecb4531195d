package atari

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	entrySize = 12

	icdOffset      = 0x156
	unusedOffset   = icdOffset + nICD*entrySize
	hdSizeOffset   = unusedOffset + 12
	ahdiOffset     = hdSizeOffset + 4
	bslStartOffset = ahdiOffset + nAHDI*entrySize
	bslCountOffset = bslStartOffset + 4
	checksumOffset = bslCountOffset + 4
)

// rawEntry is one 12-byte partition slot: flag, 3-character id, then big-endian start
// and size in sectors.
type rawEntry struct {
	flag  uint8
	id    [3]byte
	start uint32
	size  uint32
}

func entryFromBytes(b []byte) (*rawEntry, error) {
	if len(b) != entrySize {
		return nil, fmt.Errorf("cannot read partition entry from invalid byte slice, must be precisely %d bytes", entrySize)
	}
	e := &rawEntry{
		flag:  b[0],
		start: binary.BigEndian.Uint32(b[4:8]),
		size:  binary.BigEndian.Uint32(b[8:12]),
	}
	copy(e.id[:], b[1:4])
	return e, nil
}

func (e *rawEntry) toBytes() []byte {
	b := make([]byte, entrySize)
	b[0] = e.flag
	copy(b[1:4], e.id[:])
	binary.BigEndian.PutUint32(b[4:8], e.start)
	binary.BigEndian.PutUint32(b[8:12], e.size)
	return b
}

func (e *rawEntry) idString() string {
	return string(e.id[:])
}

func (e *rawEntry) used() bool {
	return e.flag&flagUsed != 0
}

// correct reports whether the id is alphanumeric ASCII and the entry lies within
// sectors (0, hdSize].
func (e *rawEntry) correct(hdSize uint32) bool {
	for _, c := range e.id {
		if !isAlnum(c) {
			return false
		}
	}
	return startSizeCorrect(e.start, e.size, hdSize)
}

func (e *rawEntry) valid(hdSize uint32) bool {
	return e.used() && e.correct(hdSize)
}

// trash is a used entry that does not describe a sane partition.
func (e *rawEntry) trash(hdSize uint32) bool {
	return e.used() && !e.correct(hdSize)
}

func (e *rawEntry) known(list []string) bool {
	return knownID(e.idString(), list)
}

func (e *rawEntry) isSignature() bool {
	return e.flag == 0 && bytes.Equal(e.toBytes()[1:1+len(signature)], signature)
}

func (e *rawEntry) putSignature() {
	b := make([]byte, entrySize)
	copy(b[1:], signature)
	s, _ := entryFromBytes(b)
	*e = *s
}

func (e *rawEntry) fill(flag uint8, id string, start, size uint32) {
	e.flag = flagUsed | flag
	copy(e.id[:], id)
	e.start = start
	e.size = size
}

func (e *rawEntry) clearUsed() {
	e.flag &^= flagUsed
}

func isAlnum(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func startSizeCorrect(start, size, hdSize uint32) bool {
	end := start + size
	return end >= start &&
		start > 0 && start <= hdSize &&
		size > 0 && size <= hdSize &&
		end > 0 && end <= hdSize
}

// rootSector is the 512-byte root sector of the disk, and the layout of every auxiliary
// root sector in the logical chain.
type rootSector struct {
	bootCode [icdOffset]byte
	icd      [nICD]rawEntry
	unused   [12]byte
	hdSize   uint32
	ahdi     [nAHDI]rawEntry
	bslStart uint32
	bslCount uint32
	checksum uint16
}

func rootSectorFromBytes(b []byte) (*rootSector, error) {
	if len(b) != sectorSize {
		return nil, fmt.Errorf("cannot read root sector from invalid byte slice, must be precisely %d bytes", sectorSize)
	}
	r := &rootSector{
		hdSize:   binary.BigEndian.Uint32(b[hdSizeOffset : hdSizeOffset+4]),
		bslStart: binary.BigEndian.Uint32(b[bslStartOffset : bslStartOffset+4]),
		bslCount: binary.BigEndian.Uint32(b[bslCountOffset : bslCountOffset+4]),
		checksum: binary.BigEndian.Uint16(b[checksumOffset : checksumOffset+2]),
	}
	copy(r.bootCode[:], b[:icdOffset])
	copy(r.unused[:], b[unusedOffset:hdSizeOffset])
	for i := range r.icd {
		e, err := entryFromBytes(b[icdOffset+i*entrySize : icdOffset+(i+1)*entrySize])
		if err != nil {
			return nil, fmt.Errorf("error reading ICD entry %d: %v", i, err)
		}
		r.icd[i] = *e
	}
	for i := range r.ahdi {
		e, err := entryFromBytes(b[ahdiOffset+i*entrySize : ahdiOffset+(i+1)*entrySize])
		if err != nil {
			return nil, fmt.Errorf("error reading AHDI entry %d: %v", i, err)
		}
		r.ahdi[i] = *e
	}
	return r, nil
}

func (r *rootSector) toBytes() []byte {
	b := make([]byte, sectorSize)
	copy(b[:icdOffset], r.bootCode[:])
	for i := range r.icd {
		copy(b[icdOffset+i*entrySize:], r.icd[i].toBytes())
	}
	copy(b[unusedOffset:hdSizeOffset], r.unused[:])
	binary.BigEndian.PutUint32(b[hdSizeOffset:hdSizeOffset+4], r.hdSize)
	for i := range r.ahdi {
		copy(b[ahdiOffset+i*entrySize:], r.ahdi[i].toBytes())
	}
	binary.BigEndian.PutUint32(b[bslStartOffset:bslStartOffset+4], r.bslStart)
	binary.BigEndian.PutUint32(b[bslCountOffset:bslCountOffset+4], r.bslCount)
	binary.BigEndian.PutUint16(b[checksumOffset:checksumOffset+2], r.checksum)
	return b
}

// sum adds the sector up as big-endian 16-bit words.
func sum(b []byte) uint16 {
	var s uint16
	for i := 0; i+1 < len(b); i += 2 {
		s += binary.BigEndian.Uint16(b[i : i+2])
	}
	return s
}

// bootable reports whether the root sector checksum marks the disk bootable.
func (r *rootSector) bootable() bool {
	return sum(r.toBytes()) == bootableChecksum
}

func forbiddenChecksum(c uint16) bool {
	for _, f := range forbiddenChecksums {
		if c == f {
			return true
		}
	}
	return false
}

// setBoot sets the checksum so the sector sums to the bootable value, or to a
// non-bootable value that is neither forbidden nor the bootable one.
func (r *rootSector) setBoot(boot bool) {
	r.checksum = 0
	s := sum(r.toBytes())
	bootSum := bootableChecksum - s
	if boot {
		r.checksum = bootSum
		return
	}
	noBootSum := nonBootableChecksum - s
	for forbiddenChecksum(noBootSum) || noBootSum == bootSum {
		noBootSum++
	}
	r.checksum = noBootSum
}
