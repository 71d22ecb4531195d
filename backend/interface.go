// Package backend defines the storage a disk image or block device is read from and written to.
//
// The file implementation wraps anything satisfying fs.File, usually an *os.File for an image
// or a block device; the memory implementation holds a whole image in RAM.
package backend

import (
	"errors"
	"io"
	"io/fs"
	"os"
)

var (
	ErrIncorrectOpenMode = errors.New("disk file or device not open for write")
	ErrNotSuitable       = errors.New("backing file is not suitable")
)

type File interface {
	fs.File
	io.ReaderAt
	io.Seeker
	io.Closer
}

type WritableFile interface {
	File
	io.WriterAt
}

type Storage interface {
	File
	// OS-specific file for ioctl calls via fd
	Sys() (*os.File, error)
	// file for read-write operations
	Writable() (WritableFile, error)
}

// Size returns the size in bytes of the storage as reported by Stat.
func Size(s Storage) (int64, error) {
	info, err := s.Stat()
	if err != nil {
		return 0, err
	}
	if info == nil {
		return 0, ErrNotSuitable
	}
	return info.Size(), nil
}
