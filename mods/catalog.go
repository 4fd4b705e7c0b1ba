package mods

import "sort"

// Pack is a named set of mod download URLs installed together.
type Pack struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description"`
	Mods        []string `json:"mods" yaml:"mods"`
}

type Summary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ModCount int    `json:"modCount"`
}

func DefaultPacks() []Pack {
	return []Pack{
		{ID: "vanilla", Name: "Vanilla", Description: "The base game with the mod loader only.", Mods: []string{}},
		{ID: "skyblock", Name: "SkyBlock Pack", Mods: []string{}},
		{ID: "tech", Name: "Tech Pack", Mods: []string{}},
	}
}

type Catalog struct {
	packs map[string]Pack
}

// NewCatalog indexes packs by id. An empty list yields DefaultPacks.
// Later packs replace earlier ones with the same id.
func NewCatalog(packs []Pack) *Catalog {
	if len(packs) == 0 {
		packs = DefaultPacks()
	}

	c := &Catalog{packs: make(map[string]Pack, len(packs))}
	for _, p := range packs {
		if p.ID == "" {
			continue
		}
		p.Mods = append([]string(nil), p.Mods...)
		c.packs[p.ID] = p
	}

	return c
}

func (c *Catalog) Get(id string) (Pack, bool) {
	p, ok := c.packs[id]
	return p, ok
}

func (c *Catalog) List() []Summary {
	out := make([]Summary, 0, len(c.packs))
	for _, p := range c.packs {
		out = append(out, Summary{ID: p.ID, Name: p.Name, ModCount: len(p.Mods)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}
