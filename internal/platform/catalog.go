package platform

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/tidwall/jsonc"

	"github.com/janekbaraniewski/loginswap/internal/core"
)

// Catalog holds the known platforms keyed by ID.
type Catalog struct {
	specs map[string]Spec
	order []string
}

func NewCatalog(specs ...Spec) *Catalog {
	c := &Catalog{specs: map[string]Spec{}}
	for _, s := range specs {
		c.Add(s)
	}
	return c
}

// Add registers s, replacing any platform with the same ID.
func (c *Catalog) Add(s Spec) {
	id := strings.ToLower(s.ID)
	s.ID = id
	if _, ok := c.specs[id]; !ok {
		c.order = append(c.order, id)
	}
	c.specs[id] = s
}

func (c *Catalog) Get(id string) (Spec, error) {
	s, ok := c.specs[strings.ToLower(id)]
	if !ok {
		return Spec{}, fmt.Errorf("platform %q: %w", id, core.ErrUnknownPlatform)
	}
	return s, nil
}

// All returns the platforms in registration order.
func (c *Catalog) All() []Spec {
	return lo.Map(c.order, func(id string, _ int) Spec { return c.specs[id] })
}

// For returns the platforms supported on goos.
func (c *Catalog) For(goos string) []Spec {
	return lo.Filter(c.All(), func(s Spec, _ int) bool { return s.Supported(goos) })
}

// customFile is the shape of platforms.jsonc.
type customFile struct {
	Platforms []Spec `json:"platforms"`
}

// LoadCustom reads user-defined platforms from a JSON-with-comments file.
// A missing file yields no platforms.
func LoadCustom(path string) ([]Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading custom platforms: %w", err)
	}
	var f customFile
	if err := json.Unmarshal(jsonc.ToJSON(data), &f); err != nil {
		return nil, fmt.Errorf("parsing custom platforms %s: %w", path, err)
	}
	for i, s := range f.Platforms {
		if err := validate(s); err != nil {
			return nil, fmt.Errorf("%s: platform %d: %w", path, i, err)
		}
	}
	return f.Platforms, nil
}

func validate(s Spec) error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("missing id")
	}
	if strings.ContainsAny(s.ID, `/\ `) {
		return fmt.Errorf("id %q must not contain separators or spaces", s.ID)
	}
	if s.LiveRoot == "" && len(s.LiveRootByOS) == 0 {
		return fmt.Errorf("platform %s: missing live_root", s.ID)
	}
	switch s.Key.Source {
	case KeyNone, KeyTokenScan, KeyFileHash, KeyRegistry, KeyINI:
	default:
		return fmt.Errorf("platform %s: unknown key source %q", s.ID, s.Key.Source)
	}
	if s.Key.Source == KeyRegistry && s.Registry == nil {
		return fmt.Errorf("platform %s: registry key source needs a registry binding", s.ID)
	}
	return nil
}

// Load returns the builtin platforms overlaid with the custom file.
func Load(customPath string) (*Catalog, error) {
	c := NewCatalog(Builtins()...)
	custom, err := LoadCustom(customPath)
	if err != nil {
		return c, err
	}
	for _, s := range custom {
		c.Add(s)
	}
	return c, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
