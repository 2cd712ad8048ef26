/*
Package goboo analyzes point clouds from particle simulations under periodic
boundary conditions: neighbor finding, bond-order parameters, potential of
mean force histograms, and diffraction patterns.

The building blocks live in subpackages:

  - box: periodic (possibly triclinic) simulation cells and minimum-image
    displacements.
  - locality: cell-list backed neighbor queries and materialized neighbor
    lists.
  - parallel: the data-parallel accumulate/reduce driver shared by every
    analysis.
  - pmft: potential of mean force and torque histograms.
  - order: Steinhardt bond-orientational order parameters (Ql, Wl).
  - environment: local bond projections onto reference vectors.
  - diffraction: 2D diffraction patterns from the FFT of binned positions.
  - data: deterministic lattice and random-system generators for tests and
    examples.

Analyses follow a common life cycle: construct with an immutable
configuration, call Compute (or Accumulate for multi-frame averaging) with a
box and point arrays, and read results back through getters. A single
analysis instance parallelizes internally but must not be used from multiple
goroutines at once. Integer-valued histograms are bit-identical regardless
of worker count; floating-point accumulations are reproducible only up to
summation order.
*/
package goboo
