// Package testhelper provides stub storage for exercising I/O failure paths in tests.
package testhelper

import (
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/diskfs/go-disklabel/backend"
)

type reader func(b []byte, offset int64) (int, error)
type writer func(b []byte, offset int64) (int, error)

// FileImpl implements backend.Storage with caller-supplied Reader and Writer,
// used for testing to enable stubbing out devices. Size is reported by Stat.
type FileImpl struct {
	Reader reader
	Writer writer
	Size   int64
}

// backend.Storage interface guard
var _ backend.Storage = (*FileImpl)(nil)

func (f *FileImpl) Stat() (os.FileInfo, error) {
	return fileInfo{size: f.Size}, nil
}

func (f *FileImpl) Read(b []byte) (int, error) {
	return f.Reader(b, 0)
}

func (f *FileImpl) Close() error {
	return nil
}

// ReadAt read at a particular offset
func (f *FileImpl) ReadAt(b []byte, offset int64) (int, error) {
	return f.Reader(b, offset)
}

// WriteAt write at a particular offset
func (f *FileImpl) WriteAt(b []byte, offset int64) (int, error) {
	return f.Writer(b, offset)
}

// Seek seek a particular offset - does not actually work
//
//nolint:unused,revive // to implement the interface
func (f *FileImpl) Seek(offset int64, whence int) (int64, error) {
	return 0, fmt.Errorf("FileImpl does not implement Seek()")
}

func (f *FileImpl) Sys() (*os.File, error) {
	return nil, backend.ErrNotSuitable
}

// Writable returns the stub itself when a Writer is set
func (f *FileImpl) Writable() (backend.WritableFile, error) {
	if f.Writer == nil {
		return nil, backend.ErrIncorrectOpenMode
	}
	return f, nil
}

type fileInfo struct {
	size int64
}

func (i fileInfo) Name() string       { return "testhelper" }
func (i fileInfo) Size() int64        { return i.size }
func (i fileInfo) Mode() fs.FileMode  { return 0o600 }
func (i fileInfo) ModTime() time.Time { return time.Time{} }
func (i fileInfo) IsDir() bool        { return false }
func (i fileInfo) Sys() any           { return nil }
