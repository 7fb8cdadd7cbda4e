// Package buffer manages the transfer buffer: a fixed-size, page-aligned
// memory region that is either an anonymous mapping owned by the process
// or a borrowed mapping of a device resource.
package buffer

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// ResourceError reports a buffer allocation or device-mapping failure.
type ResourceError struct {
	Op   string
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// Buffer is a page-aligned byte region. An owned buffer is an anonymous
// mapping; a borrowed buffer maps a device resource and is unmapped, never
// freed, on release.
type Buffer struct {
	data     []byte
	borrowed bool
	released bool
}

// Alloc creates an owned, zero-filled, page-aligned buffer of size bytes.
func Alloc(size int) (*Buffer, error) {
	if size < 1 {
		return nil, &ResourceError{Op: "alloc", Err: fmt.Errorf("invalid size %d", size)}
	}
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, &ResourceError{Op: "alloc", Err: err}
	}
	log.Debug().Int("size", size).Msg("Allocated transfer buffer")
	return &Buffer{data: data}, nil
}

// MapDevice borrows a mapping of size bytes backed by the device resource
// at path. The mapping is shared so writes reach the device domain.
func MapDevice(path string, size int) (*Buffer, error) {
	if size < 1 {
		return nil, &ResourceError{Op: "map", Path: path, Err: fmt.Errorf("invalid size %d", size)}
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, &ResourceError{Op: "map", Path: path, Err: err}
	}
	defer f.Close()

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED)
	if err != nil {
		return nil, &ResourceError{Op: "map", Path: path, Err: err}
	}
	log.Debug().Str("path", path).Int("size", size).Msg("Mapped device-backed buffer")
	return &Buffer{data: data, borrowed: true}, nil
}

// Bytes returns the buffer contents. Nil after release.
func (b *Buffer) Bytes() []byte {
	if b.released {
		return nil
	}
	return b.data
}

// Size returns the buffer size in bytes.
func (b *Buffer) Size() int { return len(b.data) }

// Borrowed reports whether the buffer aliases a device mapping.
func (b *Buffer) Borrowed() bool { return b.borrowed }

// Fill overwrites the whole buffer with v.
func (b *Buffer) Fill(v byte) {
	data := b.Bytes()
	for i := range data {
		data[i] = v
	}
}

// Release unmaps the buffer. Safe to call more than once; the region is
// unmapped at most once, and a borrowed mapping is only ever unmapped,
// the backing resource stays with the device.
func (b *Buffer) Release() error {
	if b == nil || b.released || b.data == nil {
		return nil
	}
	b.released = true
	data := b.data
	b.data = nil
	if err := unix.Munmap(data); err != nil {
		return &ResourceError{Op: "unmap", Err: err}
	}
	return nil
}
