// Package queue provides the two hand-off primitives between the engine
// goroutine and its neighbours: Queue, a blocking FIFO with cooperative
// shutdown used for commands and audit events, and Latest, a single-slot
// channel with overwrite semantics used for market data.
//
// Both are guarded by a mutex and a condition variable. Shutdown is the only
// way to cancel a blocked wait and it is permanent.
package queue
