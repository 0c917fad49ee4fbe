package fish

// Size grades a catch against its species. Below the average weight it
// reads as a fraction of the average; above it, as progress toward the
// species record.
type Size int

const (
	SizeUndersized Size = iota
	SizeKeeper
	SizeHefty
	SizeTrophy
	SizeRecord
)

func (s Size) String() string {
	switch s {
	case SizeUndersized:
		return "undersized"
	case SizeKeeper:
		return "keeper"
	case SizeHefty:
		return "hefty"
	case SizeTrophy:
		return "trophy"
	default:
		return "record"
	}
}

// Fish lighter than this share of the species average are undersized.
const undersizedShare = 0.5

// SizeOf grades weight lbs of sp.
func SizeOf(sp Species, weight float64) Size {
	if sp.AvgWeight <= 0 {
		return SizeKeeper
	}
	if weight < sp.AvgWeight*undersizedShare {
		return SizeUndersized
	}
	if weight <= sp.AvgWeight || sp.MaxWeight <= sp.AvgWeight {
		return SizeKeeper
	}

	// share of the gap between the average and the record
	gap := (weight - sp.AvgWeight) / (sp.MaxWeight - sp.AvgWeight)
	switch {
	case gap >= 0.95:
		return SizeRecord
	case gap >= 0.6:
		return SizeTrophy
	case gap >= 0.2:
		return SizeHefty
	default:
		return SizeKeeper
	}
}

// Size grades the fish against its own species.
func (f Fish) Size() Size {
	return SizeOf(f.Species, f.Weight)
}
