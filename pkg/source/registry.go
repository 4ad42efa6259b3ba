package source

import "github.com/acorn-news/cubafeed/pkg/domain"

// All returns one configured adapter per crawlable publication.
func All() []Adapter {
	return []Adapter{
		NewAdnCuba(),
		NewPeriodicoCubano(),
		NewCatorceYMedio(),
		NewCiberCuba(),
		NewDirectorioCubano(),
		NewCubanet(),
		NewMartiNoticias(),
		NewCubanosPorElMundo(),
	}
}

// ByName returns the adapter for a publication name.
func ByName(name string) (Adapter, bool) {
	for _, a := range All() {
		if a.Name() == domain.Source(name) {
			return a, true
		}
	}
	return nil, false
}
