package session

import (
	"math/rand/v2"
	"strings"
)

var (
	nameTraits = []string{
		"striped", "spotted", "glossy", "coiled", "slim", "fat",
		"amber", "silver", "dusky", "crimson", "iridescent", "shadow",
		"long", "short", "broad", "mottled", "banded", "ghost",
	}
	nameRegions = []string{
		"sahara", "andes", "balkan", "nile", "amazon", "indus",
		"texas", "mongol", "iberian", "tundra", "burmese", "caspian",
		"aussie", "nordic", "sinai", "sumatran", "haitian", "celtic",
	}
	nameSpecies = []string{
		"cobra", "adder", "viper", "python", "krait", "mamba",
		"boa", "taipan", "kingsnake", "hognose", "rattler", "anaconda",
		"coral", "milksnake", "bushmaster", "boomslang", "whip", "treeviper",
	}
)

// RandomDisplayName returns an adjective-region-species triple such as
// "glossy-nile-mamba". Names are cosmetic and may collide.
func RandomDisplayName() string {
	return strings.Join([]string{
		nameTraits[rand.IntN(len(nameTraits))],
		nameRegions[rand.IntN(len(nameRegions))],
		nameSpecies[rand.IntN(len(nameSpecies))],
	}, "-")
}
