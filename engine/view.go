package engine

import (
	"github.com/lixenwraith/simkit/core"
)

// Multi-type views iterate the FIRST listed type's dense array and filter
// each candidate against the remaining pools. Correct for any ordering;
// efficient only when the caller lists the smallest-cardinality type
// first. The traversal order is the first pool's dense order and other
// code may depend on it, so views never reorder on the caller's behalf.
//
// Iteration runs back-to-front so a body may remove the current entity's
// components (or destroy the entity) without skipping elements.

// ForEach visits every entity carrying component A
func ForEach[A any](w *World, fn func(e core.Entity, a *A)) {
	pa := GetPool[A](w)
	for i := pa.Len() - 1; i >= 0; i-- {
		fn(pa.EntityAt(i), pa.At(i))
	}
}

// ForEach2 visits every entity carrying components A and B
func ForEach2[A, B any](w *World, fn func(e core.Entity, a *A, b *B)) {
	pa := GetPool[A](w)
	pb := GetPool[B](w)
	for i := pa.Len() - 1; i >= 0; i-- {
		e := pa.EntityAt(i)
		if b, ok := pb.Get(e); ok {
			fn(e, pa.At(i), b)
		}
	}
}

// ForEach3 visits every entity carrying components A, B and C
func ForEach3[A, B, C any](w *World, fn func(e core.Entity, a *A, b *B, c *C)) {
	pa := GetPool[A](w)
	pb := GetPool[B](w)
	pc := GetPool[C](w)
	for i := pa.Len() - 1; i >= 0; i-- {
		e := pa.EntityAt(i)
		b, ok := pb.Get(e)
		if !ok {
			continue
		}
		c, ok := pc.Get(e)
		if !ok {
			continue
		}
		fn(e, pa.At(i), b, c)
	}
}
