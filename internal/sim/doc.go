// Package sim implements a small event-driven logic simulator that drives
// the trace recorder.
//
// A design is a hierarchy of instances (the root is always the last
// instance), a set of signals owned by instances, and processes (gates)
// bound to instances. A signal may be a scalar of up to 64 bits or an
// array of such elements.
//
// SCHEDULING:
//
// Events are drives of a value onto a signal (or one of its elements) at a
// simulated time. Time is (ps, delta, epsilon), ordered lexicographically.
// Run processes one time slot at a time:
//
//  1. Advance the engine time to the earliest pending slot.
//  2. Flush the recorder (it decides whether the instant is over).
//  3. Apply every drive of the slot, in scheduling order.
//  4. Notify the recorder of every signal whose value differs from the
//     start of the slot.
//  5. Evaluate the processes sensitive to those signals; their outputs are
//     scheduled after the process delay, or one delta step later when the
//     delay is zero.
//
// Before the first slot every process is evaluated once, so outputs agree
// with the initial inputs. A physical instant that needs more than MaxDeltas
// delta steps fails with a DeltaLimitError.
//
// When the queue drains (or MaxTime is passed) Run force-flushes the
// recorder so trailing changes are written.
//
// The simulator is single-threaded; Run must be called from one goroutine.
package sim
