package config

import (
	"fmt"
	"math/rand/v2"
)

var (
	adjectives = []string{
		"Silent", "Shadow", "Phantom", "Ghost", "Dark", "Night",
		"Cyber", "Neon", "Electric", "Quantum", "Digital", "Crypto",
	}
	nouns = []string{
		"Wolf", "Hawk", "Fox", "Raven", "Tiger", "Dragon",
		"Ninja", "Samurai", "Knight", "Warrior", "Sentinel", "Guardian",
	}
)

// RandomUsername makes up a display name for first-run nodes, e.g.
// "ShadowWolf42". Uniqueness is not attempted; names are cosmetic and
// peers are keyed by IP.
func RandomUsername() string {
	adj := adjectives[rand.IntN(len(adjectives))]
	noun := nouns[rand.IntN(len(nouns))]
	return fmt.Sprintf("%s%s%d", adj, noun, 10+rand.IntN(90))
}
