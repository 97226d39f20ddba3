package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
)

// AliasFile is the alias table's file name inside a catalog directory.
const AliasFile = "problemAliases.json"

//go:embed data/*.json
var embedded embed.FS

// Source reads raw catalog files.
type Source interface {
	// ReadSet returns the raw JSON of the set with the given id.
	ReadSet(id string) ([]byte, error)

	// ReadAliases returns the raw JSON of the alias table. A missing alias
	// table is reported with an error wrapping fs.ErrNotExist.
	ReadAliases() ([]byte, error)
}

// FSSource reads catalog files named "<id>.json" from a file system.
type FSSource struct {
	fsys fs.FS
	root string
}

// NewFSSource returns a Source rooted at root inside fsys.
func NewFSSource(fsys fs.FS, root string) *FSSource {
	return &FSSource{fsys: fsys, root: root}
}

// DirSource returns a Source reading from a directory on disk.
func DirSource(dir string) *FSSource {
	return NewFSSource(os.DirFS(dir), ".")
}

// EmbeddedSource returns the Source backed by the catalogs compiled into the
// binary.
func EmbeddedSource() *FSSource {
	return NewFSSource(embedded, "data")
}

func (s *FSSource) ReadSet(id string) ([]byte, error) {
	if id == "" || path.Base(id) != id {
		return nil, fmt.Errorf("invalid set id %q", id)
	}
	b, err := fs.ReadFile(s.fsys, path.Join(s.root, id+".json"))
	if err != nil {
		return nil, fmt.Errorf("read set %s: %w", id, err)
	}
	return b, nil
}

func (s *FSSource) ReadAliases() ([]byte, error) {
	b, err := fs.ReadFile(s.fsys, path.Join(s.root, AliasFile))
	if err != nil {
		return nil, fmt.Errorf("read aliases: %w", err)
	}
	return b, nil
}
