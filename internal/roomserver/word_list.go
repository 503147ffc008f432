package roomserver

import (
	"crypto/rand"
	"math/big"
	"strings"
)

var adjectives = []string{
	"amber", "brisk", "calm", "dusky", "eager", "fuzzy", "gentle", "hollow", "icy", "jolly",
	"keen", "lucky", "mellow", "nimble", "olive", "proud", "quiet", "rusty", "sunny", "tidy",
	"vivid", "witty", "young", "zesty", "bold", "crisp", "dreamy", "lively", "misty", "plucky",
}

var nouns = []string{
	"anchor", "beacon", "canyon", "delta", "ember", "falcon", "glacier", "harbor", "island", "jungle",
	"kettle", "lantern", "meadow", "nebula", "orchard", "pebble", "quarry", "river", "summit", "tundra",
	"valley", "willow", "yarrow", "zephyr", "atlas", "bramble", "comet", "dune", "fjord", "grove",
}

// roomName builds a readable room id such as "amber-canyon-mellow-comet".
func roomName() string {
	words := []string{
		pick(adjectives), pick(nouns), pick(adjectives), pick(nouns),
	}
	return strings.Join(words, "-")
}

func pick(words []string) string {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(words))))
	if err != nil {
		panic("crypto/rand: " + err.Error())
	}
	return words[n.Int64()]
}
