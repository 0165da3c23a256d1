// Package pathcodec canonicalizes file paths and builds/parses the
// connection-scoped URLs the Server uses to address files on the Client
// side. It deliberately avoids path/filepath: that package treats '\' as a
// separator on Windows, and this server must treat backslashes as literal
// path characters on every host it runs on, matching the source system's
// path handling.
package pathcodec

import (
	"errors"
	"net/url"
	"strings"
)

// ErrCanonicalize is returned when a path cannot be canonicalized.
var ErrCanonicalize = errors.New("pathcodec: cannot canonicalize path")

// Canonicalize normalizes a path for use as a FileSnapshot key: it collapses
// "./" segments and resolves ".." against preceding segments using '/' as
// the only separator, leaving backslashes untouched as literal characters.
func Canonicalize(p string) (string, error) {
	if p == "" {
		return "", ErrCanonicalize
	}
	leadingSlash := strings.HasPrefix(p, "/")
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			if len(out) == 0 {
				return "", ErrCanonicalize
			}
			out = out[:len(out)-1]
		default:
			out = append(out, part)
		}
	}
	joined := strings.Join(out, "/")
	if leadingSlash {
		joined = "/" + joined
	}
	if joined == "" {
		return "", ErrCanonicalize
	}
	return joined, nil
}

// ToURL builds the Client-facing URL "{prefix}/{connectionID}/{encoded path}"
// with every '/'-separated path component percent-encoded independently, so
// characters such as spaces, '%' and backslashes are escaped inside each
// component while the component separators remain literal slashes.
func ToURL(prefix, connectionID, path string) string {
	segments := strings.Split(path, "/")
	encoded := make([]string, len(segments))
	for i, s := range segments {
		encoded[i] = url.PathEscape(s)
	}
	trimmedPrefix := strings.TrimSuffix(prefix, "/")
	return trimmedPrefix + "/" + connectionID + "/" + strings.Join(encoded, "/")
}

// FromURL is the inverse of ToURL: given a URL path that starts with
// "{prefix}/" (the prefix is trimmed here if present), it returns the
// connection id and the decoded file path.
func FromURL(prefix, urlPath string) (connectionID, path string, err error) {
	trimmedPrefix := strings.TrimSuffix(prefix, "/")
	rest := strings.TrimPrefix(urlPath, trimmedPrefix)
	rest = strings.TrimPrefix(rest, "/")
	idx := strings.Index(rest, "/")
	if idx < 0 {
		return "", "", ErrCanonicalize
	}
	connectionID = rest[:idx]
	encodedPath := rest[idx+1:]
	segments := strings.Split(encodedPath, "/")
	decoded := make([]string, len(segments))
	for i, s := range segments {
		d, derr := url.PathUnescape(s)
		if derr != nil {
			return "", "", ErrCanonicalize
		}
		decoded[i] = d
	}
	return connectionID, strings.Join(decoded, "/"), nil
}
