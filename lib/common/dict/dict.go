package dict

import (
	"github.com/sboehler/nexotax/lib/common/compare"
	"golang.org/x/exp/maps"
)

func SortedKeys[K comparable, V any](m map[K]V, c compare.Compare[K]) []K {
	res := maps.Keys(m)
	compare.Sort(res, c)
	return res
}
