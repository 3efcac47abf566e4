package preview

import (
	"net/url"
	"path"
	"strings"

	"github.com/conneroisu/codepad/internal/errors"
)

// LibraryKind classifies a library reference by its suffix.
type LibraryKind int

const (
	LibraryUnknown LibraryKind = iota
	LibraryStylesheet
	LibraryScript
)

// Library is a named entry of the library catalogue.
type Library struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// CommonLibraries is the catalogue offered by the editor.
var CommonLibraries = []Library{
	{Name: "React 18", URL: "https://unpkg.com/react@18/umd/react.production.min.js"},
	{Name: "React DOM", URL: "https://unpkg.com/react-dom@18/umd/react-dom.production.min.js"},
	{Name: "Vue 3", URL: "https://unpkg.com/vue@3/dist/vue.global.prod.js"},
	{Name: "Bootstrap CSS", URL: "https://cdn.jsdelivr.net/npm/bootstrap@5.3.0/dist/css/bootstrap.min.css"},
	{Name: "Tailwind CSS", URL: "https://cdn.tailwindcss.com"},
	{Name: "Axios", URL: "https://unpkg.com/axios/dist/axios.min.js"},
	{Name: "Lodash", URL: "https://unpkg.com/lodash@4/lodash.min.js"},
}

// ClassifyLibrary looks at the path suffix of ref, ignoring query and
// fragment.
func ClassifyLibrary(ref string) LibraryKind {
	p := ref
	if u, err := url.Parse(ref); err == nil {
		p = u.Path
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".css":
		return LibraryStylesheet
	case ".js":
		return LibraryScript
	default:
		return LibraryUnknown
	}
}

// ValidateLibrary checks that ref is an absolute http(s) URL.
func ValidateLibrary(ref string) error {
	u, err := url.Parse(ref)
	if err != nil {
		return errors.ErrInvalidLibrary.Wrap(err).WithContext("url", ref)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.ErrInvalidLibrary.Wrap(nil).WithContext("url", ref)
	}
	if u.Host == "" {
		return errors.ErrInvalidLibrary.Wrap(nil).WithContext("url", ref)
	}
	return nil
}

// LibrarySet is an insertion-ordered set of library URLs. It is not safe
// for concurrent use; the Channel guards it.
type LibrarySet struct {
	urls []string
}

// NewLibrarySet builds a set from urls, skipping duplicates.
func NewLibrarySet(urls []string) (*LibrarySet, error) {
	s := &LibrarySet{}
	for _, u := range urls {
		if _, err := s.Add(u); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add appends ref unless it is already present. It reports whether the set
// changed.
func (s *LibrarySet) Add(ref string) (bool, error) {
	ref = strings.TrimSpace(ref)
	if err := ValidateLibrary(ref); err != nil {
		return false, err
	}
	if s.Contains(ref) {
		return false, nil
	}
	s.urls = append(s.urls, ref)
	return true, nil
}

// Remove deletes ref. It reports whether the set changed.
func (s *LibrarySet) Remove(ref string) bool {
	ref = strings.TrimSpace(ref)
	for i, u := range s.urls {
		if u == ref {
			s.urls = append(s.urls[:i], s.urls[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether ref is in the set.
func (s *LibrarySet) Contains(ref string) bool {
	for _, u := range s.urls {
		if u == ref {
			return true
		}
	}
	return false
}

// List returns a copy of the URLs in insertion order.
func (s *LibrarySet) List() []string {
	out := make([]string, len(s.urls))
	copy(out, s.urls)
	return out
}

// Len returns the number of libraries.
func (s *LibrarySet) Len() int {
	return len(s.urls)
}

// Equal reports whether the set holds exactly urls in the same order.
func (s *LibrarySet) Equal(urls []string) bool {
	if len(urls) != len(s.urls) {
		return false
	}
	for i := range urls {
		if urls[i] != s.urls[i] {
			return false
		}
	}
	return true
}
