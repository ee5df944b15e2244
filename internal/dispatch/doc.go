// Package dispatch assigns a booking to exactly one worker from a ranked
// candidate list.
//
// The Manager offers the booking to one candidate at a time. Each offer is
// exclusive and time-boxed: the current candidate may accept or reject, and
// if neither arrives before the offer timeout the cursor advances on its
// own. Running out of candidates marks the booking NO_WORKER_AVAILABLE.
//
// Acceptance is settled by the Arbiter with a single conditional update on
// the booking record (status PENDING or SEARCHING, no assignee). That update
// is the only cross-process correctness mechanism; the in-memory job table
// is a per-process cache of dispatch progress.
//
// Per-job handling is serialized by a job mutex. Every offer, advance and
// teardown bumps the job generation, and a timer callback acts only if the
// generation it captured is still current.
//
// Dispatch progress is mirrored to a StateStore with a TTL so that another
// process can resume an interrupted dispatch at the same cursor (Recover).
// Notifications go through a non-blocking Publisher and are never retried.
package dispatch
