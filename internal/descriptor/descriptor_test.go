package descriptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	camerrors "github.com/nvrsync/camsync/internal/errors"
)

func TestParseLocal(t *testing.T) {
	d, err := Parse("local:path=/var/lib/camsync/uploads")
	require.NoError(t, err)
	local, ok := d.(Local)
	require.True(t, ok)
	assert.Equal(t, "/var/lib/camsync/uploads", local.Path)
}

func TestParseSchemeIsCaseInsensitive(t *testing.T) {
	d, err := Parse("LOCAL:path=/tmp/x")
	require.NoError(t, err)
	assert.Equal(t, Local{Path: "/tmp/x"}, d)
}

func TestParseRemoteWithPort(t *testing.T) {
	d, err := Parse("sftp:username=cam;host=nas.local:2222;remote-path=/uploads;identity=file:/home/cam/.ssh/id_ed25519")
	require.NoError(t, err)
	remote, ok := d.(Remote)
	require.True(t, ok)
	assert.Equal(t, "cam", remote.Username)
	assert.Equal(t, "nas.local", remote.Host)
	assert.Equal(t, uint16(2222), remote.Port)
	assert.Equal(t, "/uploads", remote.RemotePath)
	assert.IsType(t, OnDiskIdentity{}, remote.Identity)
}

func TestParseRemoteWithoutPort(t *testing.T) {
	d, err := Parse("sftp:username=cam;host=nas.local;remote-path=/uploads;identity=file:/k")
	require.NoError(t, err)
	remote := d.(Remote)
	assert.Equal(t, uint16(0), remote.Port)
}

func TestParseMissingColonIsMalformed(t *testing.T) {
	_, err := Parse("local-path=/x")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseDuplicateKeyIsRejected(t *testing.T) {
	_, err := Parse("local:path=/a;path=/b")
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestParseUnknownKeyIsRejected(t *testing.T) {
	_, err := Parse("local:path=/a;extra=1")
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestParseMissingRequiredKeyIsRejected(t *testing.T) {
	_, err := Parse("local:")
	assert.ErrorIs(t, err, ErrMissingRequiredKey)
}

func TestParseUnknownSchemeIsRejected(t *testing.T) {
	_, err := Parse("ftp:path=/a")
	assert.ErrorIs(t, err, ErrUnknownScheme)
}

func TestParseBadPortIsRejected(t *testing.T) {
	_, err := Parse("sftp:username=cam;host=nas.local:notaport;remote-path=/x;identity=file:/k")
	assert.ErrorIs(t, err, ErrBadPort)
}

func TestParseRemoteMalformedFieldIsRejected(t *testing.T) {
	_, err := Parse("sftp:username")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestRoundTripLocal(t *testing.T) {
	d, err := Parse("local:path=/srv/uploads")
	require.NoError(t, err)
	again, err := Parse(d.Canonical())
	require.NoError(t, err)
	assert.Equal(t, d, again)
}

func TestRoundTripRemoteWithInlineIdentity(t *testing.T) {
	d, err := Parse("sftp:username=cam;host=nas.local:22;remote-path=/uploads;identity=inline:secret-key-material")
	require.NoError(t, err)
	again, err := Parse(d.Canonical())
	require.NoError(t, err)
	assert.Equal(t, d, again)
}

func TestRoundTripRemoteWithOnDiskIdentity(t *testing.T) {
	d, err := Parse("sftp:username=cam;host=nas.local;remote-path=/uploads;identity=/home/cam/.ssh/id_ed25519")
	require.NoError(t, err)
	again, err := Parse(d.Canonical())
	require.NoError(t, err)
	assert.Equal(t, d, again)
}

func TestDisplayRedactsInlineIdentity(t *testing.T) {
	d, err := Parse("sftp:username=cam;host=nas.local;remote-path=/uploads;identity=inline:super-secret")
	require.NoError(t, err)
	assert.NotContains(t, d.Display(), "super-secret")
}

func TestDisplayDoesNotRedactOnDiskIdentityPath(t *testing.T) {
	d, err := Parse("sftp:username=cam;host=nas.local;remote-path=/uploads;identity=/home/cam/.ssh/id_ed25519")
	require.NoError(t, err)
	assert.Contains(t, d.Display(), "id_ed25519")
}

func TestParseErrorsCarryDescriptorComponent(t *testing.T) {
	_, err := Parse("ftp:path=/a")
	var ee *camerrors.EnhancedError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, camerrors.ComponentDescriptor, ee.GetComponent())
	assert.Equal(t, string(camerrors.CategoryDescriptor), ee.GetCategory())
}
