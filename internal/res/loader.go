package res

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// Resource represents a loaded resource
type Resource struct {
	URL      string
	Data     []byte
	MimeType string
}

// IsImage reports whether the resource holds image data
func (r *Resource) IsImage() bool {
	return strings.HasPrefix(r.MimeType, "image/")
}

// IsSVG reports whether the resource is an SVG document
func (r *Resource) IsSVG() bool {
	return strings.HasPrefix(r.MimeType, "image/svg")
}

// GetReader returns a reader for a resource
func (r *Resource) GetReader() *bytes.Reader {
	return bytes.NewReader(r.Data)
}

// Loader handles loading resources referenced by documents: data URLs, local
// files and remote URLs. Loaded resources are cached by source.
type Loader struct {
	// Base URL or file path for resolving relative URLs
	BaseURL string

	cache     map[string]*Resource
	sizes     map[string]size
	cacheLock sync.RWMutex

	searchPaths []string
	inlineOnly  bool

	client *http.Client
}

// ErrExternalResource is returned for sources other than data URLs when the
// loader is restricted to inline resources.
var ErrExternalResource = errors.New("external resources are disabled")

// NewLoader creates a new resource loader
func NewLoader(baseURL string) *Loader {
	return &Loader{
		BaseURL: baseURL,
		cache:   make(map[string]*Resource),
		sizes:   make(map[string]size),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// AddSearchPath adds a directory to search for local resources
func (l *Loader) AddSearchPath(path string) {
	l.searchPaths = append(l.searchPaths, path)
}

// InlineOnly restricts the loader to data URLs. Files and remote URLs are
// refused without being touched.
func (l *Loader) InlineOnly() {
	l.inlineOnly = true
}

// Load loads a resource from a URL or file path
func (l *Loader) Load(urlStr string) (*Resource, error) {
	if l.inlineOnly && !strings.HasPrefix(urlStr, "data:") {
		return nil, fmt.Errorf("failed to load %s: %w", truncate(urlStr), ErrExternalResource)
	}
	l.cacheLock.RLock()
	if res, ok := l.cache[urlStr]; ok {
		l.cacheLock.RUnlock()
		return res, nil
	}
	l.cacheLock.RUnlock()

	var (
		res *Resource
		err error
	)
	if strings.HasPrefix(urlStr, "data:") {
		res, err = ParseDataURL(urlStr)
	} else {
		var resolved string
		resolved, err = l.resolveURL(urlStr)
		if err != nil {
			return nil, err
		}
		if isRemote(resolved) {
			res, err = l.loadRemote(resolved)
		} else {
			res, err = l.loadLocal(resolved)
		}
	}
	if err != nil {
		return nil, err
	}

	l.cacheLock.Lock()
	l.cache[urlStr] = res
	l.cacheLock.Unlock()
	return res, nil
}

// LoadImage loads an image resource
func (l *Loader) LoadImage(urlStr string) (*Resource, error) {
	res, err := l.Load(urlStr)
	if err != nil {
		return nil, err
	}
	if !res.IsImage() {
		return nil, fmt.Errorf("resource is not an image: %s", truncate(urlStr))
	}
	return res, nil
}

// ParseDataURL parses a data URL (RFC 2397) and returns a Resource.
// Examples:
//
//	data:image/png;base64,<base64>
//	data:text/plain,Hello%20World
func ParseDataURL(u string) (*Resource, error) {
	s, ok := strings.CutPrefix(u, "data:")
	if !ok {
		return nil, errors.New("not a data URL")
	}
	meta, dataPart, ok := strings.Cut(s, ",")
	if !ok {
		return nil, errors.New("invalid data URL")
	}

	mime := ""
	isBase64 := false
	comps := strings.Split(meta, ";")
	if comps[0] != "" {
		mime = strings.TrimSpace(comps[0])
	}
	for _, c := range comps[1:] {
		if strings.EqualFold(strings.TrimSpace(c), "base64") {
			isBase64 = true
		}
	}

	var data []byte
	if isBase64 {
		var err error
		data, err = base64.StdEncoding.DecodeString(strings.TrimSpace(dataPart))
		if err != nil {
			return nil, fmt.Errorf("invalid base64 data URL: %w", err)
		}
	} else if d, err := url.QueryUnescape(dataPart); err == nil {
		data = []byte(d)
	} else {
		data = []byte(dataPart)
	}

	if mime == "" {
		mime = mimetype.Detect(data).String()
	}
	return &Resource{URL: u, Data: data, MimeType: mime}, nil
}

// DataURL encodes data as a base64 data URL. An empty mime type is detected
// from the data.
func DataURL(mime string, data []byte) string {
	if mime == "" {
		mime = mimetype.Detect(data).String()
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func isRemote(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// resolveURL resolves a URL relative to the base URL
func (l *Loader) resolveURL(urlStr string) (string, error) {
	if isRemote(urlStr) || filepath.IsAbs(urlStr) {
		return urlStr, nil
	}
	if path, ok := strings.CutPrefix(urlStr, "file://"); ok {
		return path, nil
	}

	if !isRemote(l.BaseURL) {
		return filepath.Join(filepath.Dir(l.BaseURL), urlStr), nil
	}

	baseURL, err := url.Parse(l.BaseURL)
	if err != nil {
		return "", err
	}
	relURL, err := url.Parse(urlStr)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(relURL).String(), nil
}

// loadRemote loads a resource from a remote URL
func (l *Loader) loadRemote(urlStr string) (*Resource, error) {
	resp, err := l.client.Get(urlStr)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	mime, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	if mime == "" || mime == "application/octet-stream" {
		mime = mimetype.Detect(data).String()
	}
	return &Resource{URL: urlStr, Data: data, MimeType: strings.TrimSpace(mime)}, nil
}

// loadLocal loads a resource from a local file
func (l *Loader) loadLocal(path string) (*Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return l.loadFromSearchPaths(path)
		}
		return nil, err
	}
	return &Resource{URL: path, Data: data, MimeType: determineMimeType(path, data)}, nil
}

// loadFromSearchPaths tries to load a resource from the search paths
func (l *Loader) loadFromSearchPaths(filename string) (*Resource, error) {
	baseFilename := filepath.Base(filename)

	for _, searchPath := range l.searchPaths {
		path := filepath.Join(searchPath, baseFilename)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		return &Resource{URL: path, Data: data, MimeType: determineMimeType(path, data)}, nil
	}

	return nil, fmt.Errorf("resource not found: %s", filename)
}

// determineMimeType sniffs the data. SVG is recognized by extension too,
// since an SVG without an XML prolog sniffs as plain text.
func determineMimeType(path string, data []byte) string {
	if strings.EqualFold(filepath.Ext(path), ".svg") {
		return "image/svg+xml"
	}
	return mimetype.Detect(data).String()
}

func truncate(s string) string {
	if len(s) > 64 {
		return s[:64] + "..."
	}
	return s
}
