// Package logging tees the process log to stdout and a size-capped file.
package logging

import (
	"io"
	"log"
	"os"
	"sync"
)

const defaultMaxSize = 2 * 1024 * 1024 // 2MB

// RotatingWriter appends to a file and swaps it for a fresh one once it
// crosses maxSize, keeping a single .1 backup.
type RotatingWriter struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	size    int64
	maxSize int64
}

// NewRotatingWriter opens path for appending. Existing content counts toward
// the rotation threshold, so an oversized file from a previous run rotates on
// the first write.
func NewRotatingWriter(path string, maxSize int64) (*RotatingWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	return &RotatingWriter{file: f, path: path, size: size, maxSize: maxSize}, nil
}

// Setup routes the standard logger to stdout plus a rotating file at path.
func Setup(path string) (*RotatingWriter, error) {
	rw, err := NewRotatingWriter(path, defaultMaxSize)
	if err != nil {
		return nil, err
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rw))
	return rw, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	// A dead log file must not take stdout logging down with it.
	if w.file == nil {
		return len(p), nil
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	if w.size > w.maxSize {
		w.rotate()
	}
	return n, err
}

// rotate moves the current file to path.1 and starts a fresh one.
func (w *RotatingWriter) rotate() {
	w.file.Close()
	os.Rename(w.path, w.path+".1")

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		w.file = nil
		return
	}
	w.file = f
	w.size = 0
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Close()
}
