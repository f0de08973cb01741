package compare

import (
	"sort"
	"time"

	"golang.org/x/exp/constraints"
)

type Order int

const (
	Smaller Order = -1
	Equal   Order = 0
	Greater Order = 1
)

type Compare[T any] func(t1, t2 T) Order

func Ordered[T constraints.Ordered](t1, t2 T) Order {
	if t1 < t2 {
		return Smaller
	}
	if t1 == t2 {
		return Equal
	}
	return Greater
}

func Time(t1, t2 time.Time) Order {
	if t1.Equal(t2) {
		return Equal
	}
	if t1.Before(t2) {
		return Smaller
	}
	return Greater
}

// Sort sorts ts stably, so equal elements keep their insertion order.
func Sort[T any](ts []T, cmp Compare[T]) {
	sort.SliceStable(ts, func(i, j int) bool {
		return cmp(ts[i], ts[j]) == Smaller
	})
}
