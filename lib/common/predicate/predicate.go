// Package predicate provides combinators for boolean functions.
package predicate

import "regexp"

type Predicate[T any] func(T) bool

func And[T any](predicates ...Predicate[T]) Predicate[T] {
	return func(t T) bool {
		for _, pred := range predicates {
			if !pred(t) {
				return false
			}
		}
		return true
	}
}

func Or[T any](predicates ...Predicate[T]) Predicate[T] {
	return func(t T) bool {
		for _, pred := range predicates {
			if pred(t) {
				return true
			}
		}
		return false
	}
}

func Not[T any](pred Predicate[T]) Predicate[T] {
	return func(t T) bool {
		return !pred(t)
	}
}

func True[T any](_ T) bool {
	return true
}

// Field returns a predicate applying pred to a field of T.
func Field[T, F any](field func(T) F, pred Predicate[F]) Predicate[T] {
	return func(t T) bool {
		return pred(field(t))
	}
}

// Matches matches strings against a regex. A nil regex matches nothing.
func Matches(r *regexp.Regexp) Predicate[string] {
	if r == nil {
		return func(string) bool { return false }
	}
	return r.MatchString
}
