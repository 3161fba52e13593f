package destination

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvrsync/camsync/internal/descriptor"
	camerrors "github.com/nvrsync/camsync/internal/errors"
)

func testRemoteDescriptor(t *testing.T) descriptor.Remote {
	t.Helper()
	return descriptor.Remote{
		Username:   "cam",
		Host:       "example.invalid",
		Port:       0,
		RemotePath: "/uploads",
	}
}

func TestSFTPDescriptorRoundTripsThroughNew(t *testing.T) {
	d := testRemoteDescriptor(t)
	sd, err := NewSFTP(d)
	require.NoError(t, err)
	assert.Equal(t, d, sd.Descriptor())
}

func TestSFTPCloseWithoutConnectIsNoOp(t *testing.T) {
	d := testRemoteDescriptor(t)
	sd, err := NewSFTP(d)
	require.NoError(t, err)
	assert.NoError(t, sd.Close())
}

func TestSFTPInitFailsWhenIdentityUnresolvable(t *testing.T) {
	d := testRemoteDescriptor(t)
	d.Identity = descriptor.OnDiskIdentity{Path: "/nonexistent/path/to/key"}
	sd, err := NewSFTP(d)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = sd.Init(ctx)
	require.Error(t, err)
	assert.True(t, camerrors.IsCategory(err, camerrors.CategoryIdentity))
}

func TestSFTPConnectRespectsContextCancellation(t *testing.T) {
	d := testRemoteDescriptor(t)
	// A host that will never answer combined with an already-cancelled
	// context exercises the select-on-ctx.Done() path without needing a
	// live SFTP server.
	d.Identity = descriptor.InlineIdentity{}
	sd, err := NewSFTP(d)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = sd.connect(ctx)
	require.Error(t, err)
}
