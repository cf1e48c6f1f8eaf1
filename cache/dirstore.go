package cache

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/climaterisk-co/risk-cache/types"
)

// dirStore is the on-disk machinery shared by both backends: one file per
// entry under a flat directory, named <key><ext>. The directory is created
// on the first write so a disabled or never-written cache leaves nothing
// behind.
type dirStore struct {
	root string
	ext  string
}

func newDirStore(root, ext string) dirStore {
	return dirStore{root: root, ext: ext}
}

func (d dirStore) path(key string) string {
	return filepath.Join(d.root, key+d.ext)
}

// writeAtomic publishes a file via a uniquely named temp file and rename, so
// readers never observe partial content and concurrent same-key writers
// cannot collide on the temp path. The last writer's rename wins.
func (d dirStore) writeAtomic(key string, write func(w io.Writer) error) error {
	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return types.WrapError(err, "failed to create cache directory")
	}

	finalPath := d.path(key)
	tmpPath := finalPath + "." + uuid.NewString() + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return types.WrapError(err, "failed to create temp file")
	}

	writeErr := write(f)
	closeErr := f.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		if writeErr != nil {
			return writeErr
		}
		return types.WrapError(closeErr, "failed to close temp file")
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return types.WrapError(err, "failed to publish cache file")
	}

	return nil
}

func (d dirStore) open(key string) (*os.File, error) {
	f, err := os.Open(d.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.ErrEntryNotFound
		}
		return nil, types.Errorf(types.ErrEntryCorrupt, "open %s: %v", key, err)
	}
	return f, nil
}

func (d dirStore) Delete(key string) error {
	err := os.Remove(d.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return types.ErrEntryNotFound
		}
		return types.WrapError(err, "failed to delete cache file")
	}
	return nil
}

func (d dirStore) Entries() ([]types.EntryInfo, error) {
	dirents, err := os.ReadDir(d.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, types.WrapError(err, "failed to list cache directory")
	}

	infos := make([]types.EntryInfo, 0, len(dirents))
	for _, dirent := range dirents {
		name := dirent.Name()
		if dirent.IsDir() || !strings.HasSuffix(name, d.ext) {
			continue
		}

		info, err := dirent.Info()
		if err != nil {
			continue
		}

		infos = append(infos, types.EntryInfo{
			Key:       strings.TrimSuffix(name, d.ext),
			SizeBytes: uint64(info.Size()),
			ModTime:   info.ModTime(),
		})
	}

	return infos, nil
}

func (d dirStore) Keys() ([]string, error) {
	infos, err := d.Entries()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		keys = append(keys, info.Key)
	}
	return keys, nil
}

func (d dirStore) TotalBytes() uint64 {
	infos, err := d.Entries()
	if err != nil {
		return 0
	}

	var total uint64
	for _, info := range infos {
		total += info.SizeBytes
	}
	return total
}

func (d dirStore) Extension() string {
	return d.ext
}
