package fsutil

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fsys := OSFileSystem{}

	if !fsys.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}

	if fsys.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_OpenSeek(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.aedat")
	if err := os.WriteFile(path, []byte("#!AER-DAT2.0\r\nxyz"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	fsys := OSFileSystem{}
	f, err := fsys.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	if _, err := f.Seek(14, io.SeekStart); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "xyz" {
		t.Errorf("expected %q, got %q", "xyz", data)
	}

	info, err := fsys.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 17 {
		t.Errorf("expected size 17, got %d", info.Size())
	}
}

func TestOSFileSystem_ReadFile(t *testing.T) {
	fsys := OSFileSystem{}

	data, err := fsys.ReadFile("filesystem.go")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	if len(data) == 0 {
		t.Error("expected non-empty file content")
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	testData := []byte("hello, world")
	if err := mfs.WriteFile("/test.aedat", testData, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := mfs.ReadFile("/test.aedat")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != string(testData) {
		t.Errorf("expected %q, got %q", testData, data)
	}

	// Mutating the caller's slice must not change the stored file.
	testData[0] = 'H'
	data, _ = mfs.ReadFile("/test.aedat")
	if data[0] != 'h' {
		t.Error("stored data was aliased to the caller's slice")
	}
}

func TestMemoryFileSystem_OpenReadSeek(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if err := mfs.WriteFile("/rec.aedat", []byte("0123456789"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	f, err := mfs.Open("/rec.aedat")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	buf := make([]byte, 3)
	if _, err := io.ReadFull(f, buf); err != nil || string(buf) != "012" {
		t.Fatalf("first read = %q, %v", buf, err)
	}

	tests := []struct {
		name   string
		offset int64
		whence int
		want   int64
		next   string
	}{
		{"current", 2, io.SeekCurrent, 5, "567"},
		{"start", 1, io.SeekStart, 1, "123"},
		{"end", -3, io.SeekEnd, 7, "789"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, err := f.Seek(tt.offset, tt.whence)
			if err != nil {
				t.Fatalf("Seek failed: %v", err)
			}
			if pos != tt.want {
				t.Errorf("expected position %d, got %d", tt.want, pos)
			}
			if _, err := io.ReadFull(f, buf); err != nil {
				t.Fatalf("read after seek failed: %v", err)
			}
			if string(buf) != tt.next {
				t.Errorf("expected %q, got %q", tt.next, buf)
			}
		})
	}

	if _, err := f.Seek(-20, io.SeekEnd); err == nil {
		t.Error("expected error for negative offset")
	}

	// Seeking past the end is allowed; the next read reports EOF.
	if _, err := f.Seek(100, io.SeekStart); err != nil {
		t.Fatalf("Seek past end failed: %v", err)
	}
	if _, err := f.Read(buf); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestMemoryFileSystem_ReadAfterClose(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("/a", []byte("x"), 0644)

	f, err := mfs.Open("/a")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := f.Read(make([]byte, 1)); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestMemoryFileSystem_OpenNonExistent(t *testing.T) {
	mfs := NewMemoryFileSystem()

	_, err := mfs.Open("/nonexistent.aedat")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_Stat(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if err := mfs.WriteFile("/dir/stattest.aedat", []byte("stat content"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	info, err := mfs.Stat("/dir/stattest.aedat")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Name() != "stattest.aedat" {
		t.Errorf("expected name stattest.aedat, got %s", info.Name())
	}
	if info.Size() != 12 {
		t.Errorf("expected size 12, got %d", info.Size())
	}
	if info.Mode() != 0600 {
		t.Errorf("expected mode 0600, got %v", info.Mode())
	}
	if info.IsDir() {
		t.Error("expected a regular file")
	}
	if info.ModTime().IsZero() {
		t.Error("expected a modification time")
	}

	f, _ := mfs.Open("/dir/stattest.aedat")
	defer f.Close()
	finfo, err := f.Stat()
	if err != nil {
		t.Fatalf("File.Stat failed: %v", err)
	}
	if finfo.Size() != info.Size() {
		t.Errorf("File.Stat size %d, Stat size %d", finfo.Size(), info.Size())
	}

	if _, err := mfs.Stat("/missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_Exists(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("/a/../b.aedat", []byte("x"), 0644)

	if !mfs.Exists("/b.aedat") {
		t.Fatal("expected cleaned path to exist")
	}
	if mfs.Exists("/a/b.aedat") {
		t.Error("expected /a/b.aedat to not exist")
	}
}
