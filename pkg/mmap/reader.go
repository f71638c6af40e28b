// Package mmap maps files into memory for random access reads.
//
// Containers are zip archives whose members are read in arbitrary order;
// mapping the file once lets every member be served without a seek and
// read per access.
package mmap

import (
	"io"
	"os"
	"sync"

	"github.com/ajitpratap0/roast/pkg/errors"
)

// Reader is a read-only memory mapping of a file. It implements
// io.ReaderAt and is safe for concurrent reads.
type Reader struct {
	file *os.File
	data []byte
	// mapped is false when data was read instead of mapped.
	mapped bool

	bytesRead int64
	mu        sync.RWMutex
}

// Open maps the file at path. Empty files are not mapped.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path) //nolint:gosec // G304: path comes from the caller
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(err, errors.ErrorTypeNotFound, "file %s not found", path).WithDetail("file", path)
		}
		return nil, errors.Wrapf(err, errors.ErrorTypeIO, "failed to open %s", path).WithDetail("file", path)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, errors.ErrorTypeIO, "failed to stat %s", path)
	}
	size := stat.Size()
	if size == 0 {
		return &Reader{file: file}, nil
	}
	if int64(int(size)) != size {
		file.Close()
		return nil, errors.Newf(errors.ErrorTypeIO, "file %s is too large to map (%d bytes)", path, size)
	}

	data, mapped, err := mapFile(file, int(size))
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, errors.ErrorTypeIO, "failed to map %s", path).WithDetail("file", path)
	}
	return &Reader{file: file, data: data, mapped: mapped}, nil
}

// Len returns the size of the mapping.
func (r *Reader) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

// ReadAt implements io.ReaderAt.
func (r *Reader) ReadAt(p []byte, off int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.file == nil {
		return 0, errors.New(errors.ErrorTypeIO, "read from closed mapping")
	}
	if off < 0 {
		return 0, errors.Newf(errors.ErrorTypeIO, "negative offset %d", off)
	}
	if off >= int64(len(r.data)) {
		return 0, io.EOF
	}
	n := copy(p, r.data[off:])
	r.bytesRead += int64(n)
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// BytesRead returns the number of bytes served by ReadAt.
func (r *Reader) BytesRead() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bytesRead
}

// Close unmaps the file and closes it.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.data != nil && r.mapped {
		err = unmap(r.data)
	}
	r.data = nil

	if r.file != nil {
		if closeErr := r.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		r.file = nil
	}
	return err
}
