package store

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"forge/internal/core/domain"
	"forge/internal/port"
)

// DirFileStore serves files from a directory tree through an afero
// filesystem. FileIDs are slash paths relative to the root. A single local
// directory plays the data source, so the DataSource, Hostname and All
// scopes resolve to the whole tree.
type DirFileStore struct {
	fs   afero.Fs
	root string
}

func NewDirFileStore(fs afero.Fs, root string) *DirFileStore {
	return &DirFileStore{fs: fs, root: root}
}

func (s *DirFileStore) path(id port.FileID) string {
	return filepath.Join(s.root, filepath.FromSlash(string(id)))
}

func (s *DirFileStore) Open(id port.FileID) (io.ReadCloser, error) {
	f, err := s.fs.Open(s.path(id))
	if err != nil {
		return nil, errors.Wrap(domain.ErrIO, err.Error())
	}
	return f, nil
}

func (s *DirFileStore) ReadAll(id port.FileID) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, s.path(id))
	if err != nil {
		return nil, errors.Wrap(domain.ErrIO, err.Error())
	}
	return data, nil
}

func (s *DirFileStore) FindFiles(base port.FileID, scope domain.Scope, glob string) ([]port.FileID, error) {
	dir := s.root
	if scope == domain.ScopeFolder {
		if parent, ok := s.Parent(base); ok {
			dir = s.path(parent)
		}
	}
	if glob == "" {
		glob = "*"
	}

	var ids []port.FileID
	err := afero.Walk(s.fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(glob, info.Name()); !ok {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return nil
		}
		ids = append(ids, port.FileID(filepath.ToSlash(rel)))
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(domain.ErrIO, err.Error())
	}
	return ids, nil
}

func (s *DirFileStore) Parent(id port.FileID) (port.FileID, bool) {
	dir := filepath.ToSlash(filepath.Dir(string(id)))
	if dir == "." || dir == "/" || dir == string(id) {
		return "", false
	}
	return port.FileID(dir), true
}

func (s *DirFileStore) MimeOf(id port.FileID) string {
	data, err := s.ReadAll(id)
	if err != nil {
		return ""
	}
	return mimetype.Detect(data).String()
}

func (s *DirFileStore) ExtensionOf(id port.FileID) string {
	return strings.TrimPrefix(filepath.Ext(string(id)), ".")
}
