// Package site serves stage artifacts from a directory on disk.
package site

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"strings"
)

// ErrNoDirectory is returned when the artifact directory is unusable.
var ErrNoDirectory = errors.New("artifact directory not found")

// Register serves the files of dir under baseURL. Directory listings are
// never served. An empty dir registers nothing.
func Register(_ context.Context, mux *http.ServeMux, baseURL, dir string) error {
	if mux == nil {
		panic("mux is nil")
	}
	if dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return errors.Join(ErrNoDirectory, err)
	}

	prefix := "/" + strings.Trim(baseURL, "/") + "/"
	files := http.FileServer(http.FS(filesOnly{os.DirFS(dir)}))
	mux.Handle(prefix, http.StripPrefix(strings.TrimSuffix(prefix, "/"), files))
	return nil
}

// filesOnly hides directories so the file server cannot list them.
type filesOnly struct {
	fsys fs.FS
}

func (f filesOnly) Open(name string) (fs.File, error) {
	file, err := f.fsys.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, fs.ErrNotExist
	}
	return file, nil
}
