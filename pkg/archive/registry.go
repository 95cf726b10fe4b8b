package archive

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/crazy-max/arcfs/pkg/vfs"
	"github.com/mholt/archives"
	"github.com/pkg/errors"
)

// Access is the kind of container access a decoder needs.
type Access int

const (
	// AccessStream decoders only need fresh sequential streams of the
	// container.
	AccessStream Access = iota
	// AccessRandom decoders need positioned reads on the container. They
	// are served by a single shared handle, serialized unless the backend
	// declares concurrent positioned reads.
	AccessRandom
)

func (a Access) String() string {
	if a == AccessRandom {
		return "random"
	}
	return "stream"
}

// Factory creates a decoder reading from a container. It must not read the
// container; parsing happens on Decoder.Entries.
type Factory func(c Container) (Decoder, error)

// Provider binds filename suffixes to a decoder factory.
type Provider struct {
	Name     string
	Suffixes []string
	Access   Access
	// New is nil for formats that are recognized but cannot be decoded.
	New Factory
	// Disabled is set by the registry for providers turned off at runtime.
	Disabled bool
}

// Available returns true if the provider can decode archives.
func (p Provider) Available() bool {
	return p.New != nil && !p.Disabled
}

// Match returns the longest suffix of p matching name, case-insensitive.
// The name must be longer than the suffix.
func (p Provider) Match(name string) (string, bool) {
	lname := strings.ToLower(name)
	var best string
	for _, sfx := range p.Suffixes {
		lsfx := strings.ToLower(sfx)
		if len(lname) > len(lsfx) && strings.HasSuffix(lname, lsfx) && len(lsfx) > len(best) {
			best = lsfx
		}
	}
	return best, len(best) > 0
}

// TrimSuffix removes the longest matching suffix of p from name.
func (p Provider) TrimSuffix(name string) string {
	if sfx, ok := p.Match(name); ok {
		return name[:len(name)-len(sfx)]
	}
	return name
}

// Registry maps filenames to providers. Registration is additive and
// expected to happen at startup; lookups are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
	disabled  map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		disabled: make(map[string]bool),
	}
}

// Default is the process-wide registry populated by the format package.
var Default = NewRegistry()

// Register adds p to the default registry.
func Register(p Provider) {
	Default.Register(p)
}

// Register adds a provider.
func (r *Registry) Register(p Provider) {
	if len(p.Name) == 0 {
		panic("archive: provider without name")
	}
	if len(p.Suffixes) == 0 {
		panic("archive: provider " + p.Name + " has no suffix")
	}
	p.Suffixes = append([]string(nil), p.Suffixes...)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
}

// Disable turns off a provider by name. Names it matches keep resolving to
// it, but mounting them fails with vfs.ErrUnsupported.
func (r *Registry) Disable(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.providers {
		if strings.EqualFold(p.Name, name) {
			r.disabled[p.Name] = true
			return true
		}
	}
	return false
}

// Resolve returns the provider whose suffix is the longest match for name.
// Ties go to the provider registered first. No match means name is not an
// archive.
func (r *Registry) Resolve(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var (
		best    Provider
		bestLen int
	)
	for _, p := range r.providers {
		sfx, ok := p.Match(name)
		if !ok || len(sfx) <= bestLen {
			continue
		}
		best, bestLen = p, len(sfx)
	}
	if bestLen == 0 {
		return Provider{}, false
	}
	best.Disabled = r.disabled[best.Name]
	return best, true
}

// Detect resolves name first and falls back to identifying the format from
// the content of stream.
func (r *Registry) Detect(ctx context.Context, name string, stream io.Reader) (Provider, error) {
	if p, ok := r.Resolve(name); ok {
		return p, nil
	}
	if stream == nil {
		return Provider{}, vfs.ErrNotAnArchive
	}
	format, _, err := archives.Identify(ctx, "", stream)
	if errors.Is(err, archives.NoMatch) {
		return Provider{}, vfs.ErrNotAnArchive
	} else if err != nil {
		return Provider{}, errors.Wrap(err, "cannot identify format")
	}
	if p, ok := r.Resolve("content" + format.Extension()); ok {
		return p, nil
	}
	return Provider{}, vfs.Classify(vfs.ErrNotAnArchive, errors.Errorf("no provider for detected format %s", format.Extension()))
}

// Providers returns a snapshot of registered providers sorted by name.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		p.Disabled = r.disabled[p.Name]
		res = append(res, p)
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].Name < res[j].Name
	})
	return res
}
