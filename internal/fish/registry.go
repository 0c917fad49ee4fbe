package fish

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/sk3pz/anglerbot/internal/rarity"
)

var ErrUnknownSpecies = errors.New("unknown species")

type Species struct {
	Key       string // stable id, stored in ledgers
	Name      string
	MinWeight float64 // in lbs
	MaxWeight float64
	AvgWeight float64
	Depth     int // in ft
	Rarity    rarity.Tier
	// WeightBias of 1.0 is uniform, >1 means heavier fish are rarer
	WeightBias float64
	Image      string
}

type SpeciesJSON struct {
	Key        string      `json:"key"`
	Name       string      `json:"name"`
	MinWeight  float64     `json:"minWeight"`
	MaxWeight  float64     `json:"maxWeight"`
	AvgWeight  float64     `json:"avgWeight"`
	Depth      int         `json:"depth"`
	Rarity     rarity.Tier `json:"rarity"`
	WeightBias float64     `json:"weightBias"`
	Image      string      `json:"thumbnail"`
}

type Registry struct {
	all    []Species
	byKey  map[string]int
	byTier map[rarity.Tier][]int
}

func LoadRegistryFromJSON(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var arr []SpeciesJSON
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, fmt.Errorf("parse species: %w", err)
	}
	return NewRegistry(arr)
}

func NewRegistry(arr []SpeciesJSON) (*Registry, error) {
	if len(arr) == 0 {
		return nil, fmt.Errorf("species list is empty")
	}

	r := &Registry{
		all:    make([]Species, 0, len(arr)),
		byKey:  make(map[string]int, len(arr)),
		byTier: map[rarity.Tier][]int{},
	}

	for i, sj := range arr {
		if sj.Key == "" {
			return nil, fmt.Errorf("missing key at index %d", i)
		}
		if _, dup := r.byKey[sj.Key]; dup {
			return nil, fmt.Errorf("duplicate key %q", sj.Key)
		}
		if sj.MinWeight <= 0 || sj.MaxWeight < sj.MinWeight {
			return nil, fmt.Errorf("bad weight range for %q", sj.Key)
		}
		if sj.AvgWeight == 0 {
			sj.AvgWeight = (sj.MinWeight + sj.MaxWeight) / 2
		}
		if sj.AvgWeight < sj.MinWeight || sj.AvgWeight > sj.MaxWeight {
			return nil, fmt.Errorf("average weight outside range for %q", sj.Key)
		}
		if sj.Depth < 0 {
			return nil, fmt.Errorf("negative depth for %q", sj.Key)
		}
		if sj.WeightBias < 1 {
			sj.WeightBias = 1
		}
		if sj.Name == "" {
			sj.Name = sj.Key
		}

		r.byKey[sj.Key] = len(r.all)
		r.byTier[sj.Rarity] = append(r.byTier[sj.Rarity], len(r.all))
		r.all = append(r.all, Species{
			Key:        sj.Key,
			Name:       sj.Name,
			MinWeight:  sj.MinWeight,
			MaxWeight:  sj.MaxWeight,
			AvgWeight:  sj.AvgWeight,
			Depth:      sj.Depth,
			Rarity:     sj.Rarity,
			WeightBias: sj.WeightBias,
			Image:      sj.Image,
		})
	}

	return r, nil
}

func (r *Registry) Get(key string) (Species, bool) {
	i, ok := r.byKey[key]
	if !ok {
		return Species{}, false
	}
	return r.all[i], true
}

func (r *Registry) NameByKey(key string) string {
	if sp, ok := r.Get(key); ok {
		return sp.Name
	}
	return "Unknown"
}

// Closest finds a species by key or name, tolerating small typos.
func (r *Registry) Closest(name string) (Species, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Species{}, false
	}

	best, bestDist := -1, 0
	for i, sp := range r.all {
		if strings.ToLower(sp.Key) == name || strings.ToLower(sp.Name) == name {
			return sp, true
		}
		d := levenshtein.ComputeDistance(name, strings.ToLower(sp.Name))
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}

	if bestDist > max(2, len(name)/3) {
		return Species{}, false
	}
	return r.all[best], true
}

func (r *Registry) All() []Species {
	out := make([]Species, len(r.all))
	copy(out, r.all)
	return out
}

func (r *Registry) Count() int { return len(r.all) }
