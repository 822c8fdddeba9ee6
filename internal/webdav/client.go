// Package webdav is the protocol side of notedav: it turns sync intents
// into WebDAV requests and multistatus responses into entries. It never
// looks at the local filesystem.
package webdav

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/imroc/req/v3"
	"github.com/torfstack/notedav/internal/config"
	"github.com/torfstack/notedav/internal/davpath"
	"github.com/torfstack/notedav/internal/logging"
)

const (
	MethodPropfind = "PROPFIND"
	MethodMkcol    = "MKCOL"
	MethodMove     = "MOVE"

	ContentTypeMarkdown = "text/markdown"
)

type Client struct {
	http    *req.Client
	baseURL string
}

// NewClient builds a client for the server and remote root in cfg. The
// config is captured by value.
func NewClient(cfg config.Config) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := req.C().
		SetTimeout(timeout).
		SetUserAgent("notedav").
		SetCommonBasicAuth(cfg.Username, cfg.Password)
	return &Client{
		http:    c,
		baseURL: davpath.BaseURL(cfg.WebDavURL, cfg.RemoteRoot),
	}
}

// BaseURL is the collection URL all relative paths resolve against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// List returns the members of the collection at path. A missing
// collection is not an error and yields no entries.
func (c *Client) List(ctx context.Context, path string) ([]Entry, error) {
	u := c.collectionURL(path)
	resp, err := c.send(ctx, MethodPropfind, u, func(r *req.Request) {
		r.SetHeader("Depth", "1")
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return []Entry{}, nil
	}
	if !resp.IsSuccessState() {
		return nil, &ProtocolError{MethodPropfind, u, resp.StatusCode}
	}
	entries := ParsePropfind(bytes.NewReader(resp.Bytes()))
	return withoutSelf(entries, u), nil
}

// Stat returns the entry for path itself.
func (c *Client) Stat(ctx context.Context, path string) (Entry, error) {
	u := c.entryURL(path)
	resp, err := c.send(ctx, MethodPropfind, u, func(r *req.Request) {
		r.SetHeader("Depth", "0")
	})
	if err != nil {
		return Entry{}, err
	}
	if !resp.IsSuccessState() {
		return Entry{}, &ProtocolError{MethodPropfind, u, resp.StatusCode}
	}
	entries := ParsePropfind(bytes.NewReader(resp.Bytes()))
	if len(entries) == 0 {
		return Entry{}, &ProtocolError{MethodPropfind, u, http.StatusNotFound}
	}
	return entries[0], nil
}

func (c *Client) Download(ctx context.Context, path string) ([]byte, error) {
	u := c.entryURL(path)
	resp, err := c.send(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccessState() {
		return nil, &ProtocolError{http.MethodGet, u, resp.StatusCode}
	}
	return resp.Bytes(), nil
}

func (c *Client) Upload(ctx context.Context, path string, content []byte) error {
	u := c.entryURL(path)
	resp, err := c.send(ctx, http.MethodPut, u, func(r *req.Request) {
		r.SetContentType(ContentTypeMarkdown)
		r.SetBodyBytes(content)
	})
	if err != nil {
		return err
	}
	if !resp.IsSuccessState() {
		return &ProtocolError{http.MethodPut, u, resp.StatusCode}
	}
	return nil
}

// CreateCollection creates the collection at path. An existing collection
// (405) counts as success.
func (c *Client) CreateCollection(ctx context.Context, path string) error {
	u := c.entryURL(path)
	resp, err := c.send(ctx, MethodMkcol, u, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusMethodNotAllowed {
		logging.Debugf("Collection '%s' already exists", path)
		return nil
	}
	if !resp.IsSuccessState() {
		return &ProtocolError{MethodMkcol, u, resp.StatusCode}
	}
	return nil
}

// Delete removes path; collections are removed with their contents. A
// missing entry (404) counts as success.
func (c *Client) Delete(ctx context.Context, path string) error {
	u := c.entryURL(path)
	resp, err := c.send(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		logging.Debugf("Entry '%s' already gone", path)
		return nil
	}
	if !resp.IsSuccessState() {
		return &ProtocolError{http.MethodDelete, u, resp.StatusCode}
	}
	return nil
}

// Rename moves path to newName inside the same parent. An existing
// destination is never overwritten.
func (c *Client) Rename(ctx context.Context, path, newName string) error {
	u := c.entryURL(path)
	dst := c.entryURL(davpath.Sibling(path, newName))
	resp, err := c.send(ctx, MethodMove, u, func(r *req.Request) {
		r.SetHeader("Destination", dst)
		r.SetHeader("Overwrite", "F")
	})
	if err != nil {
		return err
	}
	if !resp.IsSuccessState() {
		return &ProtocolError{MethodMove, u, resp.StatusCode}
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, u string, prepare func(*req.Request)) (*req.Response, error) {
	r := c.http.R().SetContext(ctx)
	if prepare != nil {
		prepare(r)
	}
	logging.Debugf("%s %s", method, u)
	resp, err := r.Send(method, u)
	if err != nil {
		return nil, &TransportError{method, u, err}
	}
	return resp, nil
}

func (c *Client) entryURL(path string) string {
	return c.baseURL + davpath.Encode(davpath.Trim(path))
}

func (c *Client) collectionURL(path string) string {
	p := davpath.Trim(path)
	if p == "" {
		return c.baseURL
	}
	return c.baseURL + davpath.Encode(p) + "/"
}

// withoutSelf drops the entry describing the listed collection itself.
// The entry whose href equals the request path is preferred; otherwise the
// entry with the shortest href is dropped.
func withoutSelf(entries []Entry, requestURL string) []Entry {
	if len(entries) == 0 {
		return entries
	}

	self := -1
	if u, err := url.Parse(requestURL); err == nil {
		want := strings.TrimRight(u.Path, "/")
		self = slices.IndexFunc(entries, func(e Entry) bool {
			return strings.TrimRight(hrefPath(e.Href), "/") == want
		})
	}
	if self < 0 {
		self = shortest(entries)
	}
	return slices.Delete(slices.Clone(entries), self, self+1)
}

// shortest returns the index of the first entry with the shortest href.
func shortest(entries []Entry) int {
	idx := 0
	for i, e := range entries {
		if len(e.Href) < len(entries[idx].Href) {
			idx = i
		}
	}
	return idx
}

// hrefPath strips scheme and host from absolute hrefs.
func hrefPath(href string) string {
	i := strings.Index(href, "://")
	if i < 0 {
		return href
	}
	rest := href[i+3:]
	j := strings.Index(rest, "/")
	if j < 0 {
		return "/"
	}
	return rest[j:]
}
