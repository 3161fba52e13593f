package destination

import "strings"

// normalizePOSIX collapses "." components, resolves ".." against the
// preceding normal component, and collapses duplicate separators. An
// absolute path never climbs above the root: a ".." with no preceding
// normal component to cancel is dropped. A relative path keeps such a
// leading ".."; rejecting an escape is left to the caller. This is a pure
// function independent of the local OS's
// filepath.Clean, because the remote SFTP root isn't governed by local path
// rules — the remote endpoint performs no normalization of its own.
//
// Property: for any well-formed relative path p, normalizePOSIX(p)
// contains no "." components and no ".." components between normal
// components.
func normalizePOSIX(path string) string {
	absolute := strings.HasPrefix(path, "/")

	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))

	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 && out[len(out)-1] != ".." {
				out = out[:len(out)-1]
			} else if !absolute {
				out = append(out, "..")
			}
			// absolute: drop, never climb above root
		default:
			out = append(out, part)
		}
	}

	joined := strings.Join(out, "/")
	if absolute {
		return "/" + joined
	}
	if joined == "" {
		return "."
	}
	return joined
}

// joinRemote joins a destination's configured root with a caller-supplied
// path and normalizes the result.
func joinRemote(root, path string) string {
	if path == "" {
		return normalizePOSIX(root)
	}
	if strings.HasPrefix(path, "/") {
		return normalizePOSIX(path)
	}
	return normalizePOSIX(strings.TrimSuffix(root, "/") + "/" + path)
}
