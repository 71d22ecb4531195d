// Package memory provides a backend.Storage that keeps a whole disk image in RAM.
//
// Images can be loaded from plain, xz-compressed or lz4-compressed streams, which is how
// archived disk images are usually kept, and exported again in any of those encodings.
package memory

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/diskfs/go-disklabel/backend"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Compression is the encoding of a serialized image.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionXZ
	CompressionLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionXZ:
		return "xz"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("Compression(%d)", int(c))
	}
}

var (
	xzMagic  = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	lz4Magic = []byte{0x04, 0x22, 0x4d, 0x18}
)

// Storage is an in-memory image. It is not safe for concurrent use.
type Storage struct {
	name     string
	data     []byte
	pos      int64
	readOnly bool
	modTime  time.Time
}

// backend.Storage interface guard
var _ backend.Storage = (*Storage)(nil)

// New returns a zero-filled image of the given size.
func New(size int64) (*Storage, error) {
	if size <= 0 {
		return nil, errors.New("must pass valid image size to create")
	}
	return &Storage{
		name:    "memory",
		data:    make([]byte, size),
		modTime: time.Now(),
	}, nil
}

// FromBytes wraps b as an image. b is used directly, not copied.
func FromBytes(b []byte, readOnly bool) *Storage {
	return &Storage{
		name:     "memory",
		data:     b,
		readOnly: readOnly,
		modTime:  time.Now(),
	}
}

// Load reads a complete image from r, detecting xz and lz4 framing by their magic bytes.
func Load(r io.Reader, readOnly bool) (*Storage, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(xzMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("could not read image header: %w", err)
	}
	var src io.Reader = br
	switch {
	case bytes.HasPrefix(head, xzMagic):
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("could not open xz stream: %w", err)
		}
		src = xr
	case bytes.HasPrefix(head, lz4Magic):
		src = lz4.NewReader(br)
	}
	b, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("could not read image: %w", err)
	}
	if len(b) == 0 {
		return nil, errors.New("image is empty")
	}
	return FromBytes(b, readOnly), nil
}

// LoadFile is Load on the named file.
func LoadFile(pathName string, readOnly bool) (*Storage, error) {
	f, err := os.Open(pathName)
	if err != nil {
		return nil, fmt.Errorf("could not open image %s: %w", pathName, err)
	}
	defer f.Close()
	s, err := Load(f, readOnly)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", pathName, err)
	}
	s.name = pathName
	return s, nil
}

// Export writes the image to w using the given compression.
func (s *Storage) Export(w io.Writer, c Compression) error {
	switch c {
	case CompressionNone:
		_, err := w.Write(s.data)
		return err
	case CompressionXZ:
		xw, err := xz.NewWriter(w)
		if err != nil {
			return fmt.Errorf("could not create xz stream: %w", err)
		}
		if _, err := xw.Write(s.data); err != nil {
			return fmt.Errorf("could not compress image: %w", err)
		}
		return xw.Close()
	case CompressionLZ4:
		lw := lz4.NewWriter(w)
		if _, err := lw.Write(s.data); err != nil {
			return fmt.Errorf("could not compress image: %w", err)
		}
		return lw.Close()
	default:
		return fmt.Errorf("unknown compression %v", c)
	}
}

// Bytes returns the live image contents.
func (s *Storage) Bytes() []byte {
	return s.data
}

func (s *Storage) Sys() (*os.File, error) {
	return nil, backend.ErrNotSuitable
}

func (s *Storage) Writable() (backend.WritableFile, error) {
	if s.readOnly {
		return nil, backend.ErrIncorrectOpenMode
	}
	return s, nil
}

func (s *Storage) Stat() (fs.FileInfo, error) {
	return fileInfo{name: s.name, size: int64(len(s.data)), modTime: s.modTime}, nil
}

func (s *Storage) Read(b []byte) (int, error) {
	n, err := s.ReadAt(b, s.pos)
	s.pos += int64(n)
	return n, err
}

func (s *Storage) ReadAt(b []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if off >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(b, s.data[off:])
	if n < len(b) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt never grows the image.
func (s *Storage) WriteAt(b []byte, off int64) (int, error) {
	if s.readOnly {
		return 0, backend.ErrIncorrectOpenMode
	}
	if off < 0 || off+int64(len(b)) > int64(len(s.data)) {
		return 0, fmt.Errorf("write of %d bytes at offset %d exceeds image size %d", len(b), off, len(s.data))
	}
	s.modTime = time.Now()
	return copy(s.data[off:], b), nil
}

func (s *Storage) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = s.pos
	case io.SeekEnd:
		base = int64(len(s.data))
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if base+offset < 0 {
		return 0, fmt.Errorf("negative seek position %d", base+offset)
	}
	s.pos = base + offset
	return s.pos, nil
}

func (s *Storage) Close() error {
	return nil
}

type fileInfo struct {
	name    string
	size    int64
	modTime time.Time
}

func (f fileInfo) Name() string       { return f.name }
func (f fileInfo) Size() int64        { return f.size }
func (f fileInfo) Mode() fs.FileMode  { return 0o600 }
func (f fileInfo) ModTime() time.Time { return f.modTime }
func (f fileInfo) IsDir() bool        { return false }
func (f fileInfo) Sys() any           { return nil }
