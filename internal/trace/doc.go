// Package trace implements the signal change recorder of the simulator.
//
// The recorder observes per-timestep signal mutations reported by the
// simulation engine and writes a deduplicated, deterministically ordered
// textual record of them to a sink.
//
// PIPELINE:
//
//  1. Eligibility: computed once per signal in New, from the mode and the
//     static properties of the signal (root ownership, valid name).
//  2. Ingestion: AddChange is called by the engine for every changed signal.
//     Full and Reduced modes emit immediately into the pending buffer;
//     the merged modes overwrite a per-instant snapshot instead.
//  3. Flush: Flush sorts the pending changes by key and writes them.
//     Full and Reduced flush on every call. The merged modes only flush
//     once simulated time has advanced past the last ingested change, or
//     when forced, which coalesces every update of one instant into a
//     single block.
//
// OUTPUT FORMAT:
//
// Full and Reduced write one line per change:
//
//	10ps 0d 0e  top/clk  1
//
// The merged modes write a header followed by indented changes:
//
//	10ps
//	  top/clk  1
//	  top/data[0]  ff
//
// Nothing is written for an empty block, and ModeNone never writes.
//
// The recorder is single-threaded. It is owned by the engine that drives it
// and must not be shared across goroutines.
package trace
