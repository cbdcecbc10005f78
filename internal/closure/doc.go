// Package closure moves a per-line callback and the scope it works with
// across the worker boundary.
//
// Function values cannot be encoded, so both sides share a Registry of named
// top-level functions. Marshal replaces every function in the graph by its
// registered name and records where it was found; Reconstruct walks those
// recorded paths on the far side and puts the functions back. Only what is
// inside the scope travels: anything a callback would capture from its
// defining context is lost, which is why Register refuses function literals
// and method values outright.
package closure
