// Package file provides a backend.Storage over an image file or a block device node.
//
// Transfers are all or nothing from the caller's point of view: a read or write that
// moves fewer bytes than asked returns a *TransferError, and writes never grow an image
// file past the size it was created or opened with.
package file

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/diskfs/go-disklabel/backend"
	"github.com/diskfs/go-disklabel/disk"
)

// minSectorSize is the sector size every image size must be a multiple of.
const minSectorSize = 512

// ErrImageBounds is returned by writes that would extend an image file.
var ErrImageBounds = errors.New("transfer crosses the end of the image")

// TransferError is a read or write that moved fewer bytes than requested.
type TransferError struct {
	Op     string
	Name   string
	Offset int64
	Want   int
	Got    int
	Err    error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s: %d of %d bytes at offset %d: %v", e.Op, e.Name, e.Got, e.Want, e.Offset, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

func NewTransferError(op, name string, offset int64, want, got int, err error) *TransferError {
	return &TransferError{
		Op:     op,
		Name:   name,
		Offset: offset,
		Want:   want,
		Got:    got,
		Err:    err,
	}
}

// Storage is an open image file or device node.
type Storage struct {
	f        fs.File
	name     string
	readOnly bool
	// size bounds writes to regular files; 0 for devices, which Stat does not size
	size int64
}

// backend.Storage interface guard
var _ backend.Storage = (*Storage)(nil)

// New wraps f. Writes to a regular file are bounded by its current size.
func New(f fs.File, readOnly bool) *Storage {
	s := &Storage{f: f, name: "image", readOnly: readOnly}
	if info, err := f.Stat(); err == nil && info != nil {
		if info.Name() != "" {
			s.name = info.Name()
		}
		if info.Mode().IsRegular() {
			s.size = info.Size()
		}
	}
	return s
}

// OpenFromPath opens a device or image, e.g. /dev/sda or /tmp/atari.img, which must
// already exist. Read-write opens are exclusive.
func OpenFromPath(pathName string, readOnly bool) (*Storage, error) {
	if pathName == "" {
		return nil, errors.New("must pass device or file name")
	}
	info, err := os.Stat(pathName)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("provided device/file %s does not exist: %w", pathName, err)
	}
	if err != nil {
		return nil, fmt.Errorf("could not stat %s: %w", pathName, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("provided device/file %s is a directory", pathName)
	}

	openMode := os.O_RDONLY
	if !readOnly {
		openMode = os.O_RDWR | os.O_EXCL
	}
	f, err := os.OpenFile(pathName, openMode, 0o600)
	if err != nil {
		return nil, fmt.Errorf("could not open device %s with mode %v: %w", pathName, openMode, err)
	}
	s := New(f, readOnly)
	s.name = pathName
	return s, nil
}

// CreateFromPath creates a sparse image file of size bytes, a whole number of
// 512-byte sectors. The file must not exist.
func CreateFromPath(pathName string, size int64) (*Storage, error) {
	if pathName == "" {
		return nil, errors.New("must pass device name")
	}
	if size <= 0 {
		return nil, errors.New("must pass valid device size to create")
	}
	if size%minSectorSize != 0 {
		return nil, fmt.Errorf("image size %d is not a multiple of %d-byte sectors", size, minSectorSize)
	}
	f, err := os.OpenFile(pathName, os.O_RDWR|os.O_EXCL|os.O_CREATE, 0o666)
	if err != nil {
		return nil, fmt.Errorf("could not create device %s: %w", pathName, err)
	}
	if err := f.Truncate(size); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("could not expand device %s to size %d: %w", pathName, size, err)
	}
	return &Storage{f: f, name: pathName, size: size}, nil
}

// Sys returns the OS-specific file for ioctl calls via fd
func (s *Storage) Sys() (*os.File, error) {
	if osFile, ok := s.f.(*os.File); ok {
		return osFile, nil
	}
	return nil, backend.ErrNotSuitable
}

// Writable returns the file for read-write operations. On a read-only storage the
// error matches both backend.ErrIncorrectOpenMode and disk.ErrReadOnly.
func (s *Storage) Writable() (backend.WritableFile, error) {
	if s.readOnly {
		return nil, fmt.Errorf("%s: %w: %w", s.name, backend.ErrIncorrectOpenMode, disk.ErrReadOnly)
	}
	if _, ok := s.f.(io.WriterAt); !ok {
		return nil, backend.ErrNotSuitable
	}
	return writable{s}, nil
}

func (s *Storage) Stat() (fs.FileInfo, error) {
	return s.f.Stat()
}

func (s *Storage) Read(b []byte) (int, error) {
	return s.f.Read(b)
}

func (s *Storage) Close() error {
	return s.f.Close()
}

// ReadAt fills p or returns a *TransferError wrapping io.ErrUnexpectedEOF, or the
// underlying error.
func (s *Storage) ReadAt(p []byte, off int64) (int, error) {
	r, ok := s.f.(io.ReaderAt)
	if !ok {
		return 0, backend.ErrNotSuitable
	}
	n, err := r.ReadAt(p, off)
	if n == len(p) {
		return n, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return n, NewTransferError("read", s.name, off, len(p), n, err)
}

func (s *Storage) Seek(offset int64, whence int) (int64, error) {
	if seeker, ok := s.f.(io.Seeker); ok {
		return seeker.Seek(offset, whence)
	}
	return -1, backend.ErrNotSuitable
}

type writable struct {
	*Storage
}

// WriteAt writes all of p inside the image, or returns a *TransferError.
func (w writable) WriteAt(p []byte, off int64) (int, error) {
	if w.size > 0 && (off < 0 || off+int64(len(p)) > w.size) {
		return 0, NewTransferError("write", w.name, off, len(p), 0, ErrImageBounds)
	}
	n, err := w.f.(io.WriterAt).WriteAt(p, off)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return n, NewTransferError("write", w.name, off, len(p), n, err)
	}
	return n, nil
}
