package webdav

import "time"

// Entry is one member of a collection as reported by PROPFIND. Entries
// are produced fresh on every listing and never persisted.
type Entry struct {
	// Href is the percent-decoded server path of the entry.
	Href         string
	Name         string
	IsCollection bool
	// ModifiedAt is the getlastmodified value in unix milliseconds, 0 when
	// the server sent none or it could not be parsed.
	ModifiedAt int64
}

func (e Entry) ModTime() time.Time {
	return time.UnixMilli(e.ModifiedAt)
}
