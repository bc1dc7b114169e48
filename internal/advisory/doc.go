// Package advisory computes farm advisories from already-fetched weather data.
//
// Every function in this package is a pure transform: no I/O, no clock, no
// randomness and no package-level mutable state. Callers own fetching,
// polling and retries; the package only turns validated samples into an
// AdvisoryResult.
package advisory
