// Package static is the filesystem collaborator behind Response.SendFile:
// open a file, learn its size and content type, stream its contents. The
// engine never touches the filesystem directly.
package static

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileSystem opens files by name.
type FileSystem interface {
	Open(name string) (File, error)
}

// File is a readable file with a known size.
type File interface {
	io.ReadCloser
	Size() int64
}

// Dir returns a FileSystem serving files under root. Names are cleaned so
// they cannot escape root.
func Dir(root string) FileSystem {
	return dirFS{root: root}
}

type dirFS struct {
	root string
}

func (d dirFS) Open(name string) (File, error) {
	path := filepath.Join(d.root, filepath.Clean("/"+name))
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", name)
	}
	return osFile{File: f, size: info.Size()}, nil
}

type osFile struct {
	*os.File
	size int64
}

func (f osFile) Size() int64 {
	return f.size
}

var mimeTypes = map[string]string{
	".html": "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".txt":  "text/plain",
}

// ContentType guesses a MIME type from the file name extension, defaulting to
// text/plain.
func ContentType(name string) string {
	if t, ok := mimeTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	return "text/plain"
}
