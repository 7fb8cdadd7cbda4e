package buffer

import (
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlloc(t *testing.T) {
	buf, err := Alloc(4096)
	require.NoError(t, err)
	defer buf.Release()

	assert.Equal(t, 4096, buf.Size())
	assert.False(t, buf.Borrowed())

	// Mappings start zero-filled and page-aligned.
	data := buf.Bytes()
	addr := uintptr(unsafe.Pointer(&data[0]))
	assert.Zero(t, addr%uintptr(os.Getpagesize()))
	for _, v := range data {
		if v != 0 {
			t.Fatal("buffer not zero-filled")
		}
	}
}

func TestAllocOddSize(t *testing.T) {
	buf, err := Alloc(17)
	require.NoError(t, err)
	defer buf.Release()
	assert.Equal(t, 17, buf.Size())
}

func TestAllocInvalidSize(t *testing.T) {
	_, err := Alloc(0)
	var rerr *ResourceError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "alloc", rerr.Op)
}

func TestFill(t *testing.T) {
	buf, err := Alloc(64)
	require.NoError(t, err)
	defer buf.Release()

	buf.Fill(0x7)
	for _, v := range buf.Bytes() {
		if v != 0x7 {
			t.Fatal("fill did not cover buffer")
		}
	}
}

func TestReleaseIdempotent(t *testing.T) {
	buf, err := Alloc(4096)
	require.NoError(t, err)

	require.NoError(t, buf.Release())
	require.NoError(t, buf.Release())
	assert.Nil(t, buf.Bytes())

	var nilBuf *Buffer
	assert.NoError(t, nilBuf.Release())
}

func TestMapDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resource")
	content := make([]byte, 4096)
	for i := range content {
		content[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(path, content, 0o644))

	buf, err := MapDevice(path, 4096)
	require.NoError(t, err)
	defer buf.Release()

	assert.True(t, buf.Borrowed())
	assert.Equal(t, content, buf.Bytes())

	// Shared mapping: writes reach the backing resource.
	buf.Bytes()[0] = 0xAA
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAA), got[0])
}

func TestMapDeviceMissingPath(t *testing.T) {
	_, err := MapDevice(filepath.Join(t.TempDir(), "absent"), 4096)
	var rerr *ResourceError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "map", rerr.Op)
	assert.NotEmpty(t, rerr.Path)
}
