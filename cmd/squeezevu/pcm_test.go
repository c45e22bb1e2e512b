package main

import (
	"encoding/binary"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// pcmFrames encodes stereo frames as S16LE.
func pcmFrames(frames ...[2]int16) []byte {
	b := make([]byte, 0, len(frames)*frameSize)
	for _, f := range frames {
		b = binary.LittleEndian.AppendUint16(b, uint16(f[0]))
		b = binary.LittleEndian.AppendUint16(b, uint16(f[1]))
	}
	return b
}

// shrinkingFile reports size bytes in Stat but only has data to read,
// like a buffer truncated between stat and read.
type shrinkingFile struct {
	size int64
	data []byte
	off  int
}

type fakeInfo struct {
	size int64
}

func (i fakeInfo) Name() string       { return "squeezelite" }
func (i fakeInfo) Size() int64        { return i.size }
func (i fakeInfo) Mode() fs.FileMode  { return 0o644 }
func (i fakeInfo) ModTime() time.Time { return time.Time{} }
func (i fakeInfo) IsDir() bool        { return false }
func (i fakeInfo) Sys() any           { return nil }

func (f *shrinkingFile) Stat() (fs.FileInfo, error) { return fakeInfo{size: f.size}, nil }
func (f *shrinkingFile) Close() error               { return nil }
func (f *shrinkingFile) Read(p []byte) (int, error) {
	if f.off >= len(f.data) {
		return 0, io.EOF
	}
	n := copy(p, f.data[f.off:])
	f.off += n
	return n, nil
}

func readerFor(f fs.File) *BufferReader {
	return &BufferReader{open: func(string) (fs.File, error) { return f, nil }}
}

func TestReadSnapshot_ReadsWholeFile(t *testing.T) {
	want := pcmFrames([2]int16{1, -1}, [2]int16{32767, -32768})
	path := filepath.Join(t.TempDir(), "squeezelite-00:11:22:33:44:55")
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatalf("write pcm file: %v", err)
	}

	snap, err := NewBufferReader().ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if string(snap) != string(want) {
		t.Fatalf("snapshot = %v, want %v", []byte(snap), want)
	}
	if snap.Frames() != 2 {
		t.Fatalf("Frames() = %d, want 2", snap.Frames())
	}
	l, r := snap.Frame(1)
	if l != 32767 || r != -32768 {
		t.Fatalf("Frame(1) = (%d, %d), want (32767, -32768)", l, r)
	}
}

func TestReadSnapshot_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write pcm file: %v", err)
	}

	snap, err := NewBufferReader().ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if len(snap) != 0 || snap.Frames() != 0 {
		t.Fatalf("expected empty snapshot, got %d bytes", len(snap))
	}
}

func TestReadSnapshot_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist")

	_, err := NewBufferReader().ReadSnapshot(path)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected wrapped fs.ErrNotExist, got %v", err)
	}
}

func TestReadSnapshot_PartialRead(t *testing.T) {
	f := &shrinkingFile{size: 16, data: pcmFrames([2]int16{5, 5})}

	_, err := readerFor(f).ReadSnapshot("pcm")
	if !errors.Is(err, ErrPartialRead) {
		t.Fatalf("expected ErrPartialRead, got %v", err)
	}
}

func TestReadSnapshot_OversizeRefused(t *testing.T) {
	f := &shrinkingFile{size: maxSnapshotBytes + 1}

	_, err := readerFor(f).ReadSnapshot("pcm")
	if !errors.Is(err, ErrSnapshotAlloc) {
		t.Fatalf("expected ErrSnapshotAlloc, got %v", err)
	}
}

func TestSnapshot_TrailingPartialFrameIgnored(t *testing.T) {
	b := append(pcmFrames([2]int16{100, 200}), 0x01, 0x02, 0x03)
	if got := Snapshot(b).Frames(); got != 1 {
		t.Fatalf("Frames() = %d, want 1", got)
	}
}
