// Package destination implements the uniform capability set that every
// upload target exposes to internal/upload: init, ls, mkdir_p, put,
// put_from_memory, get_to_memory, del_file, dir_exists, file_exists, and
// descriptor. Three variants implement it: Local (filesystem), SFTP
// (remote), and Memory (in-memory, for tests).
package destination

import (
	"context"

	"github.com/nvrsync/camsync/internal/descriptor"
)

// Destination is the capability set every upload target implements. Every
// method is a suspension point: the local and memory variants never block
// in practice, but the interface is async-shaped throughout so the remote
// variant can be swapped in without changing a single call site.
type Destination interface {
	// Init idempotently prepares the destination root. For the remote
	// variant this creates the configured root directory if absent and
	// verifies it is openable.
	Init(ctx context.Context) error

	// Ls lists the file names (not joined to root) directly under path, in
	// a stable order.
	Ls(ctx context.Context, path string) ([]string, error)

	// MkdirP recursively creates path; a no-op if it already exists.
	MkdirP(ctx context.Context, path string) error

	// Put streams the local file at localPath to remotePath.
	Put(ctx context.Context, localPath, remotePath string) error

	// PutFromMemory writes data to remotePath, overwriting any existing file.
	PutFromMemory(ctx context.Context, data []byte, remotePath string) error

	// GetToMemory reads remotePath fully into memory.
	GetToMemory(ctx context.Context, remotePath string) ([]byte, error)

	// DelFile removes path. Removing a missing file is an error; callers
	// that want delete-if-exists semantics must check FileExists first
	// (see internal/upload's DeleteIfExists operation).
	DelFile(ctx context.Context, path string) error

	// DirExists and FileExists distinguish "missing" from any other error.
	DirExists(ctx context.Context, path string) (bool, error)
	FileExists(ctx context.Context, path string) (bool, error)

	// Descriptor returns the descriptor this destination was built from.
	Descriptor() descriptor.Descriptor

	// Close tears down any session held by the destination. The remote
	// variant creates a fresh session per instantiation and never pools
	// one across attempt rounds, so Close is always safe to call once the
	// destination object is no longer needed.
	Close() error
}

// New instantiates the Destination variant matching d's scheme. Called once
// per attempt-round per descriptor by internal/upload — destinations are
// never pooled across attempts.
func New(d descriptor.Descriptor) (Destination, error) {
	switch v := d.(type) {
	case descriptor.Local:
		return NewLocal(v), nil
	case descriptor.Remote:
		return NewSFTP(v)
	default:
		return nil, descriptor.ErrUnknownScheme
	}
}
