package disk

// Device is a sector-addressed block device as seen by partition label drivers and
// filesystem probes. Offsets and counts are in sectors of SectorSize bytes.
//
// Implementations must fail writes, not silently drop them, when ReadOnly is true.
type Device interface {
	SectorSize() int64
	// Length is the device size in sectors
	Length() int64
	ReadOnly() bool
	ReadSectors(start, count int64) ([]byte, error)
	WriteSectors(start int64, b []byte) error
	Sync() error
}
