package fish

import (
	"math"

	"github.com/sk3pz/anglerbot/internal/rarity"
	"github.com/sk3pz/anglerbot/internal/roll"
)

// Reach is what the sampler needs to know about a rod.
type Reach interface {
	MaxDepth() int
}

type Sampler struct {
	reg   *Registry
	table *rarity.Table
	boost *rarity.Table
	src   roll.Source
}

func NewSampler(reg *Registry, table *rarity.Table, src roll.Source) *Sampler {
	if table == nil {
		table = rarity.MustTable(rarity.DefaultFishWeights)
	}
	if src == nil {
		src = roll.New(nil)
	}
	return &Sampler{
		reg:   reg,
		table: table,
		boost: table.Boosted(),
		src:   src,
	}
}

// Sample draws a tier, then a species of that tier the rod can reach, then
// a weight. If nothing in the tier is reachable it falls back to any species
// of the tier, so a shallow rod can still hook a deep fish of the drawn tier;
// an empty tier falls back to any reachable species, then any species.
func (s *Sampler) Sample(reach Reach, boost bool) Fish {
	table := s.table
	if boost {
		table = s.boost
	}
	tier := table.Pick(s.src)
	sp := s.pickSpecies(tier, reach.MaxDepth())

	return Fish{
		Species: sp,
		Rarity:  sp.Rarity,
		Weight:  s.RollWeight(sp),
	}
}

func (s *Sampler) pickSpecies(tier rarity.Tier, depth int) Species {
	inTier := s.reg.byTier[tier]
	if reachable := s.reachable(inTier, depth); len(reachable) > 0 {
		return s.reg.all[reachable[s.src.Intn(len(reachable))]]
	}
	if len(inTier) > 0 {
		return s.reg.all[inTier[s.src.Intn(len(inTier))]]
	}

	every := make([]int, len(s.reg.all))
	for i := range every {
		every[i] = i
	}
	if reachable := s.reachable(every, depth); len(reachable) > 0 {
		return s.reg.all[reachable[s.src.Intn(len(reachable))]]
	}
	return s.reg.all[s.src.Intn(len(s.reg.all))]
}

func (s *Sampler) reachable(idx []int, depth int) []int {
	out := make([]int, 0, len(idx))
	for _, i := range idx {
		if s.reg.all[i].Depth <= depth {
			out = append(out, i)
		}
	}
	return out
}

// Weights are determined by u^k, where u is a random value between 0 and 1
// and k is the weight bias of the species. A higher k means the fish tend
// to be lighter, where as k = 1 is a uniform distribution.
func (s *Sampler) RollWeight(sp Species) float64 {
	min, max := sp.MinWeight, sp.MaxWeight
	if max < min {
		max = min
	}
	k := sp.WeightBias
	if k < 1 {
		k = 1
	}
	w := min + (max-min)*math.Pow(s.src.Float64(), k)

	// weights are rounded to a tenth of a pound
	w = math.Round(w*10) / 10
	return math.Min(max, math.Max(min, w))
}
