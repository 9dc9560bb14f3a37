package creatives

import (
	"github.com/tracklab/abtest-go/abengine/experiments"
	"github.com/tracklab/abtest-go/abengine/utils"
)

// Select picks a variant index with probability proportional to its weight.
// ok is false only when variants is empty. When no variant carries weight the
// first variant is returned.
func Select(variants []experiments.Variant, rnd utils.Random) (index int, ok bool) {
	if len(variants) == 0 {
		return 0, false
	}

	total := 0.0
	for i := range variants {
		total += variants[i].Weight()
	}
	if total <= 0 {
		return 0, true
	}

	if rnd == nil {
		rnd = utils.DefaultRandom
	}
	remaining := rnd.Float64() * total
	for i := range variants {
		remaining -= variants[i].Weight()
		if remaining <= 0 {
			return i, true
		}
	}
	// float residue
	return 0, true
}
