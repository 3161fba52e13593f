package descriptor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	camerrors "github.com/nvrsync/camsync/internal/errors"
)

func TestParseIdentityInline(t *testing.T) {
	id, err := ParseIdentity("inline:top-secret")
	require.NoError(t, err)
	assert.IsType(t, InlineIdentity{}, id)
	bytes, err := id.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "top-secret", string(bytes))
}

func TestParseIdentityFilePrefix(t *testing.T) {
	id, err := ParseIdentity("file:/home/cam/.ssh/id_ed25519")
	require.NoError(t, err)
	assert.Equal(t, OnDiskIdentity{Path: "/home/cam/.ssh/id_ed25519"}, id)
}

func TestParseIdentityBareValueIsTreatedAsPath(t *testing.T) {
	id, err := ParseIdentity("/home/cam/.ssh/id_ed25519")
	require.NoError(t, err)
	assert.Equal(t, OnDiskIdentity{Path: "/home/cam/.ssh/id_ed25519"}, id)
}

func TestParseIdentityEmptyIsMissingRequiredKey(t *testing.T) {
	_, err := ParseIdentity("")
	assert.ErrorIs(t, err, ErrMissingRequiredKey)
}

func TestOnDiskIdentityResolveMissingFile(t *testing.T) {
	id := OnDiskIdentity{Path: filepath.Join(t.TempDir(), "does-not-exist")}
	_, err := id.Resolve()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIdentityMissing)
}

func TestOnDiskIdentityResolveUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file permission bits")
	}
	path := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(path, []byte("key-bytes"), 0o000))

	id := OnDiskIdentity{Path: path}
	_, err := id.Resolve()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIdentityUnreadable)
}

func TestOnDiskIdentityResolveReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(path, []byte("key-bytes"), 0o600))

	id := OnDiskIdentity{Path: path}
	data, err := id.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "key-bytes", string(data))
}

func TestInlineIdentityDisplayRedacts(t *testing.T) {
	id := InlineIdentity{}
	assert.NotContains(t, id.Display(), "anything-secret")
	assert.Equal(t, "inline:[REDACTED]", id.Display())
}

func TestIdentityErrorsCarryIdentityCategory(t *testing.T) {
	id := OnDiskIdentity{Path: filepath.Join(t.TempDir(), "missing")}
	_, err := id.Resolve()
	assert.True(t, camerrors.IsCategory(err, camerrors.CategoryIdentity))
}
