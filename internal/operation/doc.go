// Package operation defines the strategy interface the engine executes, the
// registry that maps operation identifiers to strategies, and the built-in
// strategies for every host call the runner exposes.
package operation
