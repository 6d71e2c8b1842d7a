// Package labelstore caches the mailbox's labels on the client side.
//
// A Store holds the last successfully fetched label list and tracks each
// label operation separately: whether it is in flight and the message of
// its last failure. Successful mutations trigger a full refetch; failed
// ones leave the cached list untouched.
package labelstore
