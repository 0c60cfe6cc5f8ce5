package jade

import (
	"path/filepath"

	"github.com/spf13/afero"
)

// Resolver locates template files. ext is appended to names without an
// extension; dirs are searched in order.
type Resolver interface {
	Resolve(name, ext string, dirs []string) (string, error)
}

// FileResolver resolves names against a filesystem. Paths are searched after
// the directories passed to Resolve.
type FileResolver struct {
	FS    afero.Fs
	Paths []string
}

// NewFileResolver returns a resolver over fs, or the OS filesystem when fs is nil.
func NewFileResolver(fs afero.Fs, paths []string) *FileResolver {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FileResolver{FS: fs, Paths: paths}
}

func (r *FileResolver) Resolve(name, ext string, dirs []string) (string, error) {
	if ext != "" && filepath.Ext(name) == "" {
		name += ext
	}
	if filepath.IsAbs(name) {
		if r.exists(name) {
			return filepath.Clean(name), nil
		}
		return "", ErrTemplateNotFound{Name: name}
	}
	search := append(append([]string(nil), dirs...), r.Paths...)
	if len(search) == 0 {
		search = []string{"."}
	}
	for _, dir := range search {
		candidate := filepath.Join(dir, name)
		if r.exists(candidate) {
			if abs, err := filepath.Abs(candidate); err == nil && isOsFs(r.FS) {
				return abs, nil
			}
			return candidate, nil
		}
	}
	return "", ErrTemplateNotFound{Name: name}
}

func (r *FileResolver) exists(path string) bool {
	fi, err := r.FS.Stat(path)
	return err == nil && !fi.IsDir()
}

func isOsFs(fs afero.Fs) bool {
	_, ok := fs.(*afero.OsFs)
	return ok
}
