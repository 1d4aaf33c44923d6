package ftp

import (
	"os"
	"time"
)

// fileInfo is a minimal os.FileInfo over a vfs.Entry; the mount has no
// concept of mtime or unix permissions so those are synthesized.
type fileInfo struct {
	name  string
	size  int64
	isDir bool
}

func (f *fileInfo) Name() string { return f.name }
func (f *fileInfo) Size() int64  { return f.size }
func (f *fileInfo) Mode() os.FileMode {
	if f.isDir {
		return os.ModeDir | 0555
	}
	return 0444
}
func (f *fileInfo) ModTime() time.Time { return time.Time{} }
func (f *fileInfo) IsDir() bool        { return f.isDir }
func (f *fileInfo) Sys() interface{}   { return nil }
