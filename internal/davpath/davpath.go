// Package davpath converts between vault-relative paths and the
// percent-encoded paths used on the WebDAV wire.
//
// Vault-relative paths always use '/' as separator and carry no leading
// slash; the empty string denotes the vault root.
package davpath

import (
	"net/url"
	"strings"
)

// Encode percent-encodes every segment of p individually so the '/'
// separators survive. Spaces become %20.
func Encode(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// Decode is the exact inverse of Encode.
func Decode(p string) (string, error) {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		d, err := url.PathUnescape(s)
		if err != nil {
			return "", err
		}
		segments[i] = d
	}
	return strings.Join(segments, "/"), nil
}

// Trim strips leading and trailing separators.
func Trim(p string) string {
	return strings.Trim(p, "/")
}

// BaseURL joins the server URL and the optional remote root into the
// collection URL all relative paths are resolved against. The result
// always ends with a slash.
func BaseURL(baseURL, remoteRoot string) string {
	u := baseURL
	if !strings.HasSuffix(u, "/") {
		u += "/"
	}
	if root := Trim(remoteRoot); root != "" {
		u += Encode(root) + "/"
	}
	return u
}

// Join appends name to the relative path parent.
func Join(parent, name string) string {
	parent = Trim(parent)
	name = Trim(name)
	switch {
	case parent == "":
		return name
	case name == "":
		return parent
	}
	return parent + "/" + name
}

// Parent returns the relative path of p's parent, "" for top level entries.
func Parent(p string) string {
	p = Trim(p)
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return ""
	}
	return p[:i]
}

// Sibling returns the path of newName next to p.
func Sibling(p, newName string) string {
	return Join(Parent(p), newName)
}

// Name returns the final non-empty segment of p, ignoring trailing slashes.
func Name(p string) string {
	p = strings.TrimRight(p, "/")
	return p[strings.LastIndex(p, "/")+1:]
}
