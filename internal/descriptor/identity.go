package descriptor

import (
	"os"
	"strings"

	camerrors "github.com/nvrsync/camsync/internal/errors"
)

// Identity is the key material contract for a Remote descriptor: either an
// inline secret blob or a path to one on disk. Resolution to usable key
// bytes is lazy and happens only when a destination is instantiated.
type Identity interface {
	// Display redacts inline material; an on-disk path is shown verbatim
	// since it carries no secret itself. Used for logs and error context.
	Display() string
	// canonical renders the full text form including inline secret
	// material, for the parse/display round-trip law. Unexported: nothing
	// outside this package should ever serialize a secret.
	canonical() string
	// Resolve returns the key material bytes, reading from disk for
	// OnDisk identities.
	Resolve() ([]byte, error)
}

// InlineIdentity carries the key material directly in the descriptor text.
type InlineIdentity struct {
	secret string
}

func (i InlineIdentity) Display() string         { return "inline:[REDACTED]" }
func (i InlineIdentity) canonical() string        { return inlinePrefix + i.secret }
func (i InlineIdentity) Resolve() ([]byte, error) { return []byte(i.secret), nil }

// OnDiskIdentity points at a file holding the key material.
type OnDiskIdentity struct {
	Path string
}

func (i OnDiskIdentity) Display() string  { return "file:" + i.Path }
func (i OnDiskIdentity) canonical() string { return filePrefix + i.Path }

func (i OnDiskIdentity) Resolve() ([]byte, error) {
	data, err := os.ReadFile(i.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, camerrors.New(ErrIdentityMissing).
				Component(camerrors.ComponentDescriptor).
				Category(camerrors.CategoryIdentity).
				Context("path", i.Path).
				Build()
		}
		return nil, camerrors.New(ErrIdentityUnreadable).
			Component(camerrors.ComponentDescriptor).
			Category(camerrors.CategoryIdentity).
			Context("path", i.Path).
			Build()
	}
	return data, nil
}

// Sentinel errors for identity resolution (spec §7).
var (
	ErrIdentityMissing    = camerrors.NewStd("identity file does not exist")
	ErrIdentityUnreadable = camerrors.NewStd("identity file could not be read")
)

// inlinePrefix and filePrefix are the two recognized forms of the
// descriptor grammar's identity=<path-or-inline-ref> value. A bare value
// with neither prefix is treated as a filesystem path, matching the
// "path-or-inline" grammar's common case.
const (
	inlinePrefix = "inline:"
	filePrefix   = "file:"
)

// ParseIdentity parses the identity= field of a Remote descriptor.
func ParseIdentity(raw string) (Identity, error) {
	switch {
	case strings.HasPrefix(raw, inlinePrefix):
		return InlineIdentity{secret: strings.TrimPrefix(raw, inlinePrefix)}, nil
	case strings.HasPrefix(raw, filePrefix):
		return OnDiskIdentity{Path: strings.TrimPrefix(raw, filePrefix)}, nil
	case raw == "":
		return nil, camerrors.New(ErrMissingRequiredKey).
			Component(camerrors.ComponentDescriptor).
			Category(camerrors.CategoryDescriptor).
			Build()
	default:
		return OnDiskIdentity{Path: raw}, nil
	}
}
