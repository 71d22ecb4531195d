//go:build !(aix || darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris)
// +build !aix,!darwin,!dragonfly,!freebsd,!linux,!netbsd,!openbsd,!solaris

package disk

// ReReadPartitionTable is a no-op where the kernel has no BLKRRPART equivalent.
func (d *Disk) ReReadPartitionTable() error {
	return nil
}
