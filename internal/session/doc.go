// Package session launches a target program as a monitored subprocess
// and delivers its output, periodic process-tree resource samples, and
// lifecycle transitions as one ordered event stream.
//
// Each session runs two pump goroutines (one per output pipe, so a
// full buffer on one channel can never stall the other), a sampler
// goroutine walking /proc on a fixed tick, and a merge loop that fans
// everything into the caller's channel. Termination escalates from
// SIGINT on the root to a SIGKILL of the freshly re-enumerated tree,
// and a post-exit scan reports any descendant that survived.
package session
