package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

var (
	// ErrSourceUnavailable means the PCM buffer could not be opened.
	ErrSourceUnavailable = errors.New("pcm source unavailable")
	// ErrPartialRead means the buffer changed size while it was being read.
	ErrPartialRead = errors.New("pcm partial read")
	// ErrSnapshotAlloc means no buffer could be obtained for the snapshot.
	ErrSnapshotAlloc = errors.New("pcm snapshot allocation failed")
)

// Snapshot is the full content of the shared PCM buffer at one instant:
// interleaved little-endian S16 stereo frames.
type Snapshot []byte

// Frames returns the number of complete stereo frames. A trailing partial
// frame is ignored.
func (s Snapshot) Frames() int {
	return len(s) / frameSize
}

// Frame decodes frame i.
func (s Snapshot) Frame(i int) (left, right int16) {
	off := i * frameSize
	left = int16(binary.LittleEndian.Uint16(s[off:]))
	right = int16(binary.LittleEndian.Uint16(s[off+bytesPerSample:]))
	return left, right
}

// BufferReader fetches snapshots of a buffer that another process rewrites
// in place. It keeps no state between reads and never retries.
type BufferReader struct {
	open func(name string) (fs.File, error)
}

// NewBufferReader returns a reader backed by the OS filesystem.
func NewBufferReader() *BufferReader {
	return &BufferReader{
		open: func(name string) (fs.File, error) { return os.Open(name) },
	}
}

// ReadSnapshot reads the whole file at path in one pass.
func (r *BufferReader) ReadSnapshot(path string) (Snapshot, error) {
	f, err := r.open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat: %w", ErrSourceUnavailable, err)
	}

	size := info.Size()
	if size < 0 || size > maxSnapshotBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrSnapshotAlloc, size)
	}

	buf := make([]byte, size)
	n, err := io.ReadFull(f, buf)
	if n != len(buf) {
		return nil, fmt.Errorf("%w: got %d of %d bytes: %w", ErrPartialRead, n, size, err)
	}

	return Snapshot(buf), nil
}
