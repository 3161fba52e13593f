package destination

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/nvrsync/camsync/internal/descriptor"
	camerrors "github.com/nvrsync/camsync/internal/errors"
)

// LocalDestination implements Destination over the local filesystem. All
// paths given to its methods are resolved against root and confined to it;
// a path that would escape root is rejected rather than silently clamped.
type LocalDestination struct {
	root string
	d    descriptor.Local
}

// NewLocal constructs a LocalDestination rooted at d.Path.
func NewLocal(d descriptor.Local) *LocalDestination {
	return &LocalDestination{root: filepath.Clean(d.Path), d: d}
}

func (l *LocalDestination) Descriptor() descriptor.Descriptor { return l.d }
func (l *LocalDestination) Close() error                      { return nil }

func (l *LocalDestination) resolve(path string) (string, error) {
	clean := normalizePOSIX(path)
	full := filepath.Join(l.root, filepath.FromSlash(clean))
	rel, err := filepath.Rel(l.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", l.err(os.ErrPermission, "resolve_path").Context("path", path).Build()
	}
	return full, nil
}

func (l *LocalDestination) err(cause error, op string) *camerrors.ErrorBuilder {
	return camerrors.New(cause).
		Component(camerrors.ComponentDestination).
		Category(camerrors.CategoryFileIO).
		Context("operation", op).
		Context("descriptor_scheme", "local")
}

// Init creates the root directory if it doesn't exist and verifies it is a
// usable directory.
func (l *LocalDestination) Init(ctx context.Context) error {
	if err := os.MkdirAll(l.root, 0o755); err != nil {
		return l.err(err, "init").Build()
	}
	info, err := os.Stat(l.root)
	if err != nil {
		return l.err(err, "init").Build()
	}
	if !info.IsDir() {
		return l.err(camerrors.NewStd("root is not a directory"), "init").Build()
	}
	return nil
}

func (l *LocalDestination) Ls(ctx context.Context, path string) ([]string, error) {
	full, err := l.resolve(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, l.err(err, "ls").Context("path", path).Build()
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (l *LocalDestination) MkdirP(ctx context.Context, path string) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(full, 0o755); err != nil {
		return l.err(err, "mkdir_p").Context("path", path).Build()
	}
	return nil
}

func (l *LocalDestination) Put(ctx context.Context, localPath, remotePath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return l.err(err, "put").Context("local_path", localPath).Build()
	}
	return l.PutFromMemory(ctx, data, remotePath)
}

// PutFromMemory writes data atomically via a temp file + rename so a
// concurrent reader never observes a partial write, overwriting any
// existing file at remotePath.
func (l *LocalDestination) PutFromMemory(ctx context.Context, data []byte, remotePath string) error {
	full, err := l.resolve(remotePath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return l.err(err, "put_from_memory").Context("path", remotePath).Build()
	}

	tmp := fmt.Sprintf("%s.tmp-%d", full, time.Now().UnixNano())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return l.err(err, "put_from_memory").Context("path", remotePath).Build()
	}

	succeeded := false
	defer func() {
		if !succeeded {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return l.err(err, "put_from_memory").Context("path", remotePath).Build()
	}
	if err := f.Sync(); err != nil {
		return l.err(err, "put_from_memory").Context("path", remotePath).Build()
	}
	if err := f.Close(); err != nil {
		return l.err(err, "put_from_memory").Context("path", remotePath).Build()
	}
	if err := os.Rename(tmp, full); err != nil {
		return l.err(err, "put_from_memory").Context("path", remotePath).Build()
	}
	succeeded = true
	return nil
}

func (l *LocalDestination) GetToMemory(ctx context.Context, remotePath string) ([]byte, error) {
	full, err := l.resolve(remotePath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, l.err(err, "get_to_memory").Context("path", remotePath).Build()
	}
	return data, nil
}

func (l *LocalDestination) DelFile(ctx context.Context, path string) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		return l.err(err, "del_file").Context("path", path).Build()
	}
	return nil
}

func (l *LocalDestination) DirExists(ctx context.Context, path string) (bool, error) {
	full, err := l.resolve(path)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(full)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, l.err(err, "dir_exists").Context("path", path).Build()
	}
	return info.IsDir(), nil
}

func (l *LocalDestination) FileExists(ctx context.Context, path string) (bool, error) {
	full, err := l.resolve(path)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(full)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, l.err(err, "file_exists").Context("path", path).Build()
	}
	return !info.IsDir(), nil
}

var _ io.Closer = (*LocalDestination)(nil)
