// Package variate draws the random numbers a Monte-Carlo polymer
// synthesizer consumes: uniforms from a reseedable generator, Gaussian and
// Poisson deviates, arm lengths from monodisperse, Gaussian, lognormal,
// semi-living and Flory laws, and sorted branch-point positions.
//
// All state lives in a Sampler. Runs that must be reproducible create one
// Sampler per stream with a fixed seed; nothing in this package is global
// except the opt-in Shared source.
package variate
