package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"persona_ad_studio/persona"
)

//go:embed seed.yaml
var seedYAML []byte

var ErrInvalidAdPath = errors.New("invalid ad image path")

// adsURLPrefix is the public URL prefix clients use for catalogue ads.
const adsURLPrefix = "/ads/"

// Product is a pre-supplied product description.
type Product struct {
	ID          int    `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
}

// Ad is a pre-supplied reference ad.
type Ad struct {
	ID    int    `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
	Path  string `json:"path" yaml:"path"`
}

// Catalog is the seed data handed to new sessions and the pickers.
type Catalog struct {
	Personas []persona.Persona `json:"personas" yaml:"personas"`
	Products []Product         `json:"products" yaml:"products"`
	Ads      []Ad              `json:"ads" yaml:"ads"`

	adsDir string
}

// Load reads the catalogue at path, or the embedded seed when path is empty.
// adsDir is the directory that /ads/ references resolve into.
func Load(path, adsDir string) (*Catalog, error) {
	data := seedYAML
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("catalog: read %s: %w", path, err)
		}
		data = raw
	}
	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	c.adsDir = adsDir
	return c, nil
}

// Parse decodes and validates a catalogue document.
func Parse(data []byte) (*Catalog, error) {
	if len(data) == 0 {
		return nil, errors.New("catalog: document is empty")
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate requires at least one persona and unique, complete persona entries.
func (c *Catalog) Validate() error {
	if len(c.Personas) == 0 {
		return errors.New("catalog: at least one persona is required")
	}
	for _, p := range c.Personas {
		if p.Name == "" || p.Bio == "" {
			return fmt.Errorf("catalog: persona %q needs a name and bio", p.ID)
		}
	}
	if err := persona.ValidatePersonas(c.Personas, nil); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	return nil
}

// SeedPersonas returns a copy of the personas so callers may edit bios freely.
func (c *Catalog) SeedPersonas() []persona.Persona {
	out := make([]persona.Persona, len(c.Personas))
	copy(out, c.Personas)
	return out
}

// AdPath resolves an ad reference such as "/ads/image1.png" to a file inside
// the ads directory. References that escape the directory are rejected.
func (c *Catalog) AdPath(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.Contains(ref, "\\") || strings.Contains(ref, "\x00") {
		return "", ErrInvalidAdPath
	}
	for _, part := range strings.Split(ref, "/") {
		if part == ".." {
			return "", ErrInvalidAdPath
		}
	}
	cleaned := path.Clean("/" + ref)
	name := strings.TrimPrefix(cleaned, adsURLPrefix)
	if name == cleaned || name == "" {
		return "", ErrInvalidAdPath
	}

	base, err := filepath.Abs(c.adsDir)
	if err != nil {
		return "", fmt.Errorf("catalog: ads dir: %w", err)
	}
	full := filepath.Join(base, filepath.FromSlash(name))
	rel, err := filepath.Rel(base, full)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", ErrInvalidAdPath
	}
	return full, nil
}

// ReadAd loads the bytes of a pre-supplied ad.
func (c *Catalog) ReadAd(ref string) ([]byte, error) {
	p, err := c.AdPath(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("catalog: read ad %s: %w", ref, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("catalog: ad %s is empty", ref)
	}
	return data, nil
}
