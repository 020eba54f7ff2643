// Package queue holds in-flight download items in memory and exposes the
// atomic operations workers and front ends use to drive their lifecycle.
//
// The Store keeps an explicit consumption order (a linked list of keys plus a
// hash index) behind one mutex. Workers claim the first available Waiting item
// with TryClaimNext and hand it back with Release, which moves it to the back
// of the order so a slow item cannot be picked up again before its peers.
// Control helpers (Cancel, Retry, CancelAll, RetryAll, ClearCompleted) only
// touch status and progress; the claim flag belongs to the worker that set it.
//
// Pending holds resolved-but-not-yet-fetched entries upstream of the Store.
//
// Nothing here is persisted: the queue lives exactly as long as the process.
package queue
