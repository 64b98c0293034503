// Package solver implements the numerical fit primitives consumed by the
// robust estimators: a closed-form linear lateration solver used to seed
// candidates, a weighted Gauss-Newton solver over any subset of
// {position, transmitted power, path-loss exponent}, and a convenience
// transmission-only fit for a fixed emitter position.
//
// Solvers report numerical failure (degenerate geometry, singular normal
// equations, divergence) as ordinary errors; callers running consensus
// sampling treat a failed fit as "no candidate from this subset", not as
// a fault.
package solver
