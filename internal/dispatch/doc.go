// Package dispatch routes decoded signals to the active feedback and runs
// the lifecycle state machine.
//
// Two goroutines share the work:
//   - the dispatch goroutine (the UDP listener) calls OnSignal for every
//     packet in arrival order and executes pause, stop, quit and sendinit
//     transitions synchronously
//   - the Executor goroutine blocks on the play handoff and runs the active
//     feedback's OnPlay until it returns
//
// The handoff is a single-slot flag, not a queue: any number of PLAY
// signals raised before the executor drains the flag yield one play run.
//
// The active feedback lives in a Slot. Slot reads and swaps are locked but
// hook calls are made outside the lock, so a pause or stop reaches a
// feedback whose OnPlay is still running. Feedbacks observe stop and quit
// cooperatively; the controller never interrupts a running play. A
// feedback implementing plugin.PlayArmer is armed on every PLAY before the
// handoff is raised, so it can tell a stop that follows the request from a
// stale one and cancel a play that has not started yet.
//
// Error handling:
//   - undecodable packet → logged, journaled as dropped, no state change
//   - feedback hook error or panic → logged, published as plugin.fault,
//     slot left as is
//   - feedback load failure on sendinit → logged, slot gets the default
//     feedback and the triggering payload is still delivered
package dispatch
