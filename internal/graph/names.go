package graph

import "fmt"

// nameGenerator hands out "<prefix>_<n>" names with a counter per prefix.
type nameGenerator struct {
	counters map[string]int
}

func newNameGenerator() *nameGenerator {
	return &nameGenerator{counters: make(map[string]int)}
}

func (g *nameGenerator) next(prefix string) string {
	n := g.counters[prefix]
	g.counters[prefix] = n + 1
	return fmt.Sprintf("%s_%d", prefix, n)
}
