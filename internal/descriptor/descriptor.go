// Package descriptor implements camsync's destination descriptor grammar: a
// tagged, serializable address for an upload destination, parsed from and
// printed back to a fixed text form (spec §4.B).
//
//	local:path=<abs-path>
//	sftp:username=<u>;host=<h>[:<port>];remote-path=<p>;identity=<path-or-inline-ref>
package descriptor

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	camerrors "github.com/nvrsync/camsync/internal/errors"
)

// Descriptor is a tagged destination address. The two concrete types are
// Local and Remote (spec calls the scheme "sftp", but the type is named
// Remote since the descriptor grammar is the only sftp-specific surface —
// everything else treats it as "the remote variant").
type Descriptor interface {
	// Display renders the descriptor back to text, with any inline secret
	// material redacted. Safe for logs and error context.
	Display() string
	// Canonical renders the descriptor back to text with secret material
	// intact, satisfying parse(Canonical(d)) == d. Never logged.
	Canonical() string
}

// Local addresses the local filesystem.
type Local struct {
	Path string
}

func (l Local) scheme() string { return "local" }

// Display renders the canonical local: form. Local descriptors carry no
// secret material, so Display and Canonical coincide.
func (l Local) Display() string   { return l.text(l.Path) }
func (l Local) Canonical() string { return l.text(l.Path) }
func (l Local) text(path string) string {
	return fmt.Sprintf("local:path=%s", path)
}

// Remote addresses an SFTP server.
type Remote struct {
	Username   string
	Host       string
	Port       uint16 // 0 means "not specified"; callers default it (usually 22)
	RemotePath string
	Identity   Identity
}

func (r Remote) scheme() string { return "sftp" }

// Display renders the sftp: form with inline identity material redacted.
func (r Remote) Display() string { return r.text(r.Identity.Display()) }

// Canonical renders the sftp: form with identity material intact, so that
// parse(Canonical(d)) == d.
func (r Remote) Canonical() string { return r.text(r.Identity.canonical()) }

func (r Remote) text(identity string) string {
	host := r.Host
	if r.Port != 0 {
		host = fmt.Sprintf("%s:%d", r.Host, r.Port)
	}
	return fmt.Sprintf("sftp:username=%s;host=%s;remote-path=%s;identity=%s",
		r.Username, host, r.RemotePath, identity)
}

// Sentinel errors: the core surfaces these via internal/errors' Category
// mechanism (spec §7) rather than ad hoc strings.
var (
	ErrMalformed          = camerrors.NewStd("descriptor malformed")
	ErrUnknownScheme      = camerrors.NewStd("descriptor has unknown scheme")
	ErrDuplicateKey       = camerrors.NewStd("descriptor has a duplicate key")
	ErrUnknownKey         = camerrors.NewStd("descriptor has an unknown key")
	ErrMissingRequiredKey = camerrors.NewStd("descriptor is missing a required key")
	ErrBadPort            = camerrors.NewStd("descriptor has a malformed port")
)

var localRequiredKeys = []string{"path"}
var remoteRequiredKeys = []string{"username", "host", "remote-path", "identity"}

// Parse parses a descriptor in its canonical text form. The scheme is
// matched case-insensitively; keys are lower-cased before matching;
// duplicate or unknown keys are rejected; every required key must be
// present; an optional :port on host must parse as a uint16.
func Parse(text string) (Descriptor, error) {
	scheme, rest, ok := strings.Cut(text, ":")
	if !ok {
		return nil, buildErr(ErrMalformed, text, "missing ':' after scheme")
	}
	scheme = strings.ToLower(scheme)

	fields, err := parseFields(rest)
	if err != nil {
		return nil, buildErr(err, text, "")
	}

	switch scheme {
	case "local":
		if err := requireKeys(fields, localRequiredKeys); err != nil {
			return nil, buildErr(err, text, "")
		}
		if err := rejectUnknownKeys(fields, localRequiredKeys); err != nil {
			return nil, buildErr(err, text, "")
		}
		return Local{Path: fields["path"]}, nil

	case "sftp":
		if err := requireKeys(fields, remoteRequiredKeys); err != nil {
			return nil, buildErr(err, text, "")
		}
		if err := rejectUnknownKeys(fields, remoteRequiredKeys); err != nil {
			return nil, buildErr(err, text, "")
		}

		host, port, err := splitHostPort(fields["host"])
		if err != nil {
			return nil, buildErr(err, text, "")
		}

		identity, err := ParseIdentity(fields["identity"])
		if err != nil {
			return nil, err
		}

		return Remote{
			Username:   fields["username"],
			Host:       host,
			Port:       port,
			RemotePath: fields["remote-path"],
			Identity:   identity,
		}, nil

	default:
		return nil, buildErr(ErrUnknownScheme, text, fmt.Sprintf("scheme %q", scheme))
	}
}

func buildErr(sentinel error, text, detail string) *camerrors.EnhancedError {
	b := camerrors.New(sentinel).
		Component(camerrors.ComponentDescriptor).
		Category(camerrors.CategoryDescriptor)
	if detail != "" {
		b.Context("detail", detail)
	}
	return b.Build()
}

// parseFields splits a `key=value;key=value` body into a map, rejecting
// duplicate keys. Keys are lower-cased; values are left verbatim.
func parseFields(body string) (map[string]string, error) {
	fields := make(map[string]string)
	if body == "" {
		return fields, nil
	}
	for _, part := range strings.Split(body, ";") {
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, ErrMalformed
		}
		key = strings.ToLower(key)
		if _, exists := fields[key]; exists {
			return nil, ErrDuplicateKey
		}
		fields[key] = value
	}
	return fields, nil
}

func requireKeys(fields map[string]string, required []string) error {
	for _, key := range required {
		if _, ok := fields[key]; !ok {
			return ErrMissingRequiredKey
		}
	}
	return nil
}

func rejectUnknownKeys(fields map[string]string, allowed []string) error {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, k := range allowed {
		allowedSet[k] = struct{}{}
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := allowedSet[k]; !ok {
			return ErrUnknownKey
		}
	}
	return nil
}

func splitHostPort(hostPort string) (string, uint16, error) {
	host, portStr, ok := strings.Cut(hostPort, ":")
	if !ok {
		return hostPort, 0, nil
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return "", 0, ErrBadPort
	}
	return host, uint16(port), nil
}
