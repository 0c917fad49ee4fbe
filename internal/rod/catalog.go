package rod

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/sk3pz/anglerbot/internal/rarity"
	"github.com/sk3pz/anglerbot/internal/roll"
)

var (
	ErrUnknownComponent = errors.New("unknown rod component")
	ErrIncompatible     = errors.New("incompatible rod type and material")
)

type StarterJSON struct {
	Type     string `json:"type"`
	Material string `json:"material"`
}

type CatalogJSON struct {
	Types      []Component    `json:"types"`
	Materials  []Component    `json:"materials"`
	Modifiers  []Modifier     `json:"modifiers"`
	Starter    StarterJSON    `json:"starter"`
	ShopRarity map[string]int `json:"shopRarity"`
}

type Catalog struct {
	types     []Component
	materials []Component
	typeIdx   map[string]int
	matIdx    map[string]int
	modifiers map[string]Modifier

	// reserved maps a type name to the materials reserved for it.
	reserved map[string][]int
	// free holds the materials usable with any unreserved type.
	free []int

	typesByTier map[rarity.Tier][]int
	freeByTier  map[rarity.Tier][]int

	byID    map[string]Rod
	starter Rod
	shop    *rarity.Table
}

func LoadCatalogFromJSON(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cj CatalogJSON
	if err := json.Unmarshal(raw, &cj); err != nil {
		return nil, fmt.Errorf("parse rod catalog: %w", err)
	}
	return NewCatalog(cj)
}

func NewCatalog(cj CatalogJSON) (*Catalog, error) {
	if len(cj.Types) == 0 {
		return nil, fmt.Errorf("rod catalog has no types")
	}
	if len(cj.Materials) == 0 {
		return nil, fmt.Errorf("rod catalog has no materials")
	}

	c := &Catalog{
		types:       cj.Types,
		materials:   cj.Materials,
		typeIdx:     make(map[string]int, len(cj.Types)),
		matIdx:      make(map[string]int, len(cj.Materials)),
		modifiers:   make(map[string]Modifier, len(cj.Modifiers)),
		reserved:    map[string][]int{},
		typesByTier: map[rarity.Tier][]int{},
		freeByTier:  map[rarity.Tier][]int{},
		byID:        map[string]Rod{},
	}

	for i, t := range cj.Types {
		if t.Name == "" {
			return nil, fmt.Errorf("missing name for rod type at index %d", i)
		}
		if _, dup := c.typeIdx[t.Name]; dup {
			return nil, fmt.Errorf("duplicate rod type %q", t.Name)
		}
		if t.ReservedFor != "" {
			return nil, fmt.Errorf("rod type %q cannot be reserved", t.Name)
		}
		c.typeIdx[t.Name] = i
		c.typesByTier[t.Rarity] = append(c.typesByTier[t.Rarity], i)
	}

	for i, m := range cj.Materials {
		if m.Name == "" {
			return nil, fmt.Errorf("missing name for rod material at index %d", i)
		}
		if _, dup := c.matIdx[m.Name]; dup {
			return nil, fmt.Errorf("duplicate rod material %q", m.Name)
		}
		c.matIdx[m.Name] = i
		if m.ReservedFor != "" {
			if _, ok := c.typeIdx[m.ReservedFor]; !ok {
				return nil, fmt.Errorf("material %q reserved for unknown type %q", m.Name, m.ReservedFor)
			}
			c.reserved[m.ReservedFor] = append(c.reserved[m.ReservedFor], i)
			continue
		}
		c.free = append(c.free, i)
		c.freeByTier[m.Rarity] = append(c.freeByTier[m.Rarity], i)
	}
	if len(c.free) == 0 && len(c.reserved) < len(c.types) {
		return nil, fmt.Errorf("rod catalog has no unreserved materials")
	}

	for _, m := range cj.Modifiers {
		if m.Name == "" {
			return nil, fmt.Errorf("rod modifier without a name")
		}
		if _, dup := c.modifiers[m.Name]; dup {
			return nil, fmt.Errorf("duplicate rod modifier %q", m.Name)
		}
		c.modifiers[m.Name] = m
	}

	for ti := range c.types {
		for mi := range c.materials {
			r, err := c.compose(ti, mi)
			if err != nil {
				continue
			}
			if _, dup := c.byID[r.ID]; dup {
				return nil, fmt.Errorf("rod id %q is ambiguous", r.ID)
			}
			c.byID[r.ID] = r
		}
	}

	starter, err := c.Compose(cj.Starter.Type, cj.Starter.Material)
	if err != nil {
		return nil, fmt.Errorf("starter rod: %w", err)
	}
	c.starter = starter

	weights := rarity.DefaultShopWeights
	if len(cj.ShopRarity) > 0 {
		weights = make(map[rarity.Tier]int, len(cj.ShopRarity))
		for name, w := range cj.ShopRarity {
			tier, err := rarity.Parse(name)
			if err != nil {
				return nil, fmt.Errorf("shop rarity: %w", err)
			}
			weights[tier] = w
		}
	}
	if c.shop, err = rarity.NewTable(weights); err != nil {
		return nil, fmt.Errorf("shop rarity: %w", err)
	}

	return c, nil
}

// Compose combines a type and a material into a rod.
func (c *Catalog) Compose(typeName, materialName string) (Rod, error) {
	ti, ok := c.typeIdx[typeName]
	if !ok {
		return Rod{}, fmt.Errorf("%w: type %q", ErrUnknownComponent, typeName)
	}
	mi, ok := c.matIdx[materialName]
	if !ok {
		return Rod{}, fmt.Errorf("%w: material %q", ErrUnknownComponent, materialName)
	}
	return c.compose(ti, mi)
}

func (c *Catalog) compose(ti, mi int) (Rod, error) {
	t, m := c.types[ti], c.materials[mi]
	if m.ReservedFor != "" && m.ReservedFor != t.Name {
		return Rod{}, fmt.Errorf("%w: %s is only made with %s", ErrIncompatible, m.Name, m.ReservedFor)
	}
	if own := c.reserved[t.Name]; len(own) > 0 && !slices.Contains(own, mi) {
		return Rod{}, fmt.Errorf("%w: %s cannot be made from %s", ErrIncompatible, t.Name, m.Name)
	}

	return Rod{
		ID:          rodID(t.Name, m.Name),
		Type:        t.Name,
		Material:    m.Name,
		Description: t.Description,
		Rarity:      max(t.Rarity, m.Rarity),
		Stats:       t.Stats.Add(m.Stats),
	}, nil
}

// Lookup resolves a stored rod id and optional modifier into a rod.
func (c *Catalog) Lookup(id string, modifier *string) (Rod, error) {
	r, ok := c.byID[id]
	if !ok {
		return Rod{}, fmt.Errorf("%w: rod %q", ErrUnknownComponent, id)
	}
	if modifier == nil || *modifier == "" {
		return r, nil
	}
	m, ok := c.modifiers[*modifier]
	if !ok {
		return Rod{}, fmt.Errorf("%w: modifier %q", ErrUnknownComponent, *modifier)
	}
	r.Modifier = m.Name
	r.Stats = r.Stats.Add(m.Stats)
	return r, nil
}

func (c *Catalog) Starter() Rod { return c.starter }

// ShopTable is the rarity distribution used when stocking the shop.
func (c *Catalog) ShopTable() *rarity.Table { return c.shop }

// Random composes a rod whose type and material are both drawn from tier.
// The reserved pairing always holds: a type that owns reserved materials
// gets one of them, any other type only sees unreserved materials.
//
// If the catalog has nothing in tier for a component, the first entry of
// that component is used instead. This is not fair: it makes the first
// entry more likely than its rarity says, and it is logged.
func (c *Catalog) Random(tier rarity.Tier, src roll.Source) Rod {
	ti := 0
	if bucket := c.typesByTier[tier]; len(bucket) > 0 {
		ti = bucket[src.Intn(len(bucket))]
	} else {
		slog.Warn("no rod type in tier, using first type",
			slog.String("tier", tier.String()),
			slog.String("type", c.types[0].Name))
	}

	var mi int
	if own := c.reserved[c.types[ti].Name]; len(own) > 0 {
		mi = own[src.Intn(len(own))]
	} else if bucket := c.freeByTier[tier]; len(bucket) > 0 {
		mi = bucket[src.Intn(len(bucket))]
	} else {
		mi = c.free[0]
		slog.Warn("no rod material in tier, using first material",
			slog.String("tier", tier.String()),
			slog.String("material", c.materials[mi].Name))
	}

	r, err := c.compose(ti, mi)
	if err != nil {
		// compose only fails on reserved pairings, which the branches above rule out
		panic(err)
	}
	return r
}

func (c *Catalog) Count() int { return len(c.byID) }
