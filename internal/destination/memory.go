package destination

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/nvrsync/camsync/internal/descriptor"
	camerrors "github.com/nvrsync/camsync/internal/errors"
)

// MemoryDescriptor addresses the in-memory virtual filesystem. It isn't
// part of the parseable descriptor grammar (spec §4.B only defines local:
// and sftp:) — tests construct it directly.
type MemoryDescriptor struct {
	Name string
}

func (m MemoryDescriptor) scheme() string   { return "memory" }
func (m MemoryDescriptor) Display() string   { return "memory:name=" + m.Name }
func (m MemoryDescriptor) Canonical() string { return m.Display() }

// MemoryDestination is an in-memory virtual filesystem used for testing the
// upload primitive and the task layers above it without touching disk or
// network. Safe for concurrent use; all state is guarded by mu.
type MemoryDestination struct {
	mu    sync.Mutex
	files map[string][]byte
	d     MemoryDescriptor

	// Failure injection for test scenarios.
	FailInit          bool
	FailOn            map[string]int // operation name -> remaining failures to inject
	InitCalls         int
	PutCalls          int
	DelCalls          int
}

// NewMemory constructs an empty MemoryDestination.
func NewMemory(d MemoryDescriptor) *MemoryDestination {
	return &MemoryDestination{files: make(map[string][]byte), d: d}
}

func (m *MemoryDestination) Descriptor() descriptor.Descriptor { return m.d }
func (m *MemoryDestination) Close() error                      { return nil }

func (m *MemoryDestination) shouldFail(op string) bool {
	if m.FailOn == nil {
		return false
	}
	remaining, ok := m.FailOn[op]
	if !ok || remaining <= 0 {
		return false
	}
	m.FailOn[op] = remaining - 1
	return true
}

func (m *MemoryDestination) err(op string) error {
	return camerrors.New(camerrors.NewStd("injected failure: "+op)).
		Component(camerrors.ComponentDestination).
		Category(camerrors.CategoryDestination).
		Context("operation", op).
		Context("descriptor_scheme", "memory").
		Build()
}

func (m *MemoryDestination) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitCalls++
	if m.FailInit || m.shouldFail("init") {
		return m.err("init")
	}
	return nil
}

func (m *MemoryDestination) Ls(ctx context.Context, dir string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFail("ls") {
		return nil, m.err("ls")
	}

	prefix := strings.TrimSuffix(normalizePOSIX(dir), "/") + "/"
	if prefix == "/" || prefix == "./" {
		prefix = ""
	}

	seen := make(map[string]struct{})
	var names []string
	for name := range m.files {
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		first, _, _ := strings.Cut(rest, "/")
		if first == "" {
			continue
		}
		if _, ok := seen[first]; !ok {
			seen[first] = struct{}{}
			names = append(names, first)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryDestination) MkdirP(ctx context.Context, dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFail("mkdir_p") {
		return m.err("mkdir_p")
	}
	// Directories are implicit in the flat key space; nothing to persist.
	return nil
}

func (m *MemoryDestination) Put(ctx context.Context, localPath, remotePath string) error {
	return m.err("put: memory destination does not read local files")
}

func (m *MemoryDestination) PutFromMemory(ctx context.Context, data []byte, remotePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutCalls++
	if m.shouldFail("put_from_memory") {
		return m.err("put_from_memory")
	}
	key := normalizePOSIX(remotePath)
	buf := make([]byte, len(data))
	copy(buf, data)
	m.files[key] = buf
	return nil
}

func (m *MemoryDestination) GetToMemory(ctx context.Context, remotePath string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shouldFail("get_to_memory") {
		return nil, m.err("get_to_memory")
	}
	key := normalizePOSIX(remotePath)
	data, ok := m.files[key]
	if !ok {
		return nil, camerrors.New(camerrors.NewStd("file not found")).
			Component(camerrors.ComponentDestination).
			Category(camerrors.CategoryFileIO).
			Context("path", remotePath).
			Build()
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemoryDestination) DelFile(ctx context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DelCalls++
	if m.shouldFail("del_file") {
		return m.err("del_file")
	}
	key := normalizePOSIX(p)
	if _, ok := m.files[key]; !ok {
		return camerrors.New(camerrors.NewStd("file not found")).
			Component(camerrors.ComponentDestination).
			Category(camerrors.CategoryFileIO).
			Context("path", p).
			Build()
	}
	delete(m.files, key)
	return nil
}

func (m *MemoryDestination) DirExists(ctx context.Context, dir string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(normalizePOSIX(dir), "/") + "/"
	for name := range m.files {
		if strings.HasPrefix(name, prefix) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryDestination) FileExists(ctx context.Context, p string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[normalizePOSIX(p)]
	return ok, nil
}

// Snapshot returns a copy of the current file table, for test assertions.
func (m *MemoryDestination) Snapshot() map[string][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]byte, len(m.files))
	for k, v := range m.files {
		buf := make([]byte, len(v))
		copy(buf, v)
		out[path.Clean(k)] = buf
	}
	return out
}
