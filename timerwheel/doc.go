/*
Package timerwheel is a fixed-capacity, single-level timer wheel that lives
entirely inside one contiguous byte region. Timers are one-shot or repeating
with whole-second intervals of at most one wheel revolution, and fire from an
explicit, caller-driven Advance rather than an internal goroutine.

The region holds a header, a ring of 60 bucket heads, and an arena of timer
nodes linked by array index instead of pointer, so the region can be placed in
an mmap'd file or shared segment, re-mapped at any address, and re-attached
after a process restart without losing pending timers. Externally visible
timer references are 64-bit handles pairing a slot index with a generation
counter, which makes a handle to a deleted-then-recycled slot detectably
stale instead of silently aliasing the new occupant.

The wheel is single-threaded: nothing here locks, and callers sharing a store
across goroutines or processes must serialize every call themselves. The
timeout callback runs inline with Advance and may schedule or cancel timers
on the same store, including the one being fired.
*/
package timerwheel
