package webdav

import (
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/torfstack/notedav/internal/davpath"
	"github.com/torfstack/notedav/internal/logging"
)

// ParsePropfind reads a multistatus document and returns its entries in
// document order. Tags are matched case-insensitively on their local name,
// whatever namespace or prefix they carry. The parse fails open: a broken
// entry is dropped, and a broken document yields everything collected
// before the error.
func ParsePropfind(r io.Reader) []Entry {
	d := xml.NewDecoder(r)

	var (
		entries    []Entry
		inResponse bool
		href       string
		collection bool
		modified   int64
	)

	for {
		tok, err := d.Token()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logging.Debugf("propfind: stopping at malformed document: %s", err)
			}
			return entries
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case isResponse(t.Name):
				inResponse = true
				href, collection, modified = "", false, 0
			case !inResponse:
			case matches(t.Name, "href"):
				text, err := readText(d)
				if err != nil {
					return entries
				}
				// a response may reference further hrefs inside its props
				if href == "" {
					href = strings.TrimSpace(text)
				}
			case matches(t.Name, "collection"):
				collection = true
			case matches(t.Name, "getlastmodified"):
				text, err := readText(d)
				if err != nil {
					return entries
				}
				modified = parseLastModified(text)
			}
		case xml.EndElement:
			if !isResponse(t.Name) {
				continue
			}
			if inResponse && href != "" {
				if e, ok := newEntry(href, collection, modified); ok {
					entries = append(entries, e)
				}
			}
			inResponse = false
		}
	}
}

func newEntry(href string, collection bool, modified int64) (Entry, bool) {
	decoded, err := davpath.Decode(href)
	if err != nil {
		logging.Debugf("propfind: dropping entry with undecodable href '%s': %s", href, err)
		return Entry{}, false
	}
	name := davpath.Name(decoded)
	if name == "" {
		return Entry{}, false
	}
	return Entry{
		Href:         decoded,
		Name:         name,
		IsCollection: collection,
		ModifiedAt:   modified,
	}, true
}

func matches(name xml.Name, tag string) bool {
	return strings.Contains(strings.ToLower(name.Local), tag)
}

func isResponse(name xml.Name) bool {
	return matches(name, "response") && !matches(name, "responsedescription")
}

// readText consumes tokens up to the end of the current element and
// returns its character data.
func readText(d *xml.Decoder) (string, error) {
	var sb strings.Builder
	depth := 0
	for {
		tok, err := d.Token()
		if err != nil {
			return sb.String(), err
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				return sb.String(), nil
			}
			depth--
		}
	}
}

func parseLastModified(s string) int64 {
	s = strings.TrimSpace(s)
	t, err := http.ParseTime(s)
	if err != nil {
		t, err = time.Parse(time.RFC1123Z, s)
	}
	if err != nil {
		logging.Debugf("propfind: could not parse getlastmodified '%s': %s", s, err)
		return 0
	}
	return t.UnixMilli()
}
