package destination

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePOSIXCollapsesDotComponents(t *testing.T) {
	cases := map[string]string{
		"a/./b":       "a/b",
		"a//b":        "a/b",
		"./a/b":       "a/b",
		"a/b/.":       "a/b",
		"":            ".",
		".":           ".",
		"a/../b":      "b",
		"a/b/../../c": "c",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizePOSIX(in), "input %q", in)
	}
}

func TestNormalizePOSIXNeverClimbsAboveAbsoluteRoot(t *testing.T) {
	assert.Equal(t, "/", normalizePOSIX("/.."))
	assert.Equal(t, "/a", normalizePOSIX("/../a"))
	assert.Equal(t, "/a", normalizePOSIX("/../../a"))
}

func TestNormalizePOSIXRelativeLeadingDotDotIsPreserved(t *testing.T) {
	// A relative path with no preceding normal component to cancel keeps the
	// ".." — it is the caller's job (joinRemote, or the local destination's
	// root confinement check) to reject an escape, not the normalizer's.
	assert.Equal(t, "..", normalizePOSIX(".."))
	assert.Equal(t, "../a", normalizePOSIX("../a"))
}

func TestNormalizePOSIXNoDotComponentsRemain(t *testing.T) {
	inputs := []string{"a/./b/../c/", "././.", "a/b/c/../../../d"}
	for _, in := range inputs {
		out := normalizePOSIX(in)
		for _, part := range strings.Split(out, "/") {
			assert.NotEqual(t, ".", part)
		}
	}
}

func TestJoinRemoteComposesRootAndPath(t *testing.T) {
	assert.Equal(t, "/srv/uploads/2026/07/31", joinRemote("/srv/uploads", "2026/07/31"))
	assert.Equal(t, "/srv/uploads", joinRemote("/srv/uploads", ""))
	assert.Equal(t, "/other", joinRemote("/srv/uploads", "/other"))
	assert.Equal(t, "/srv/uploads/c", joinRemote("/srv/uploads/a/../b/..", "c"))
}
