// Package uart drives serial ports through DMA.
//
// Every open port keeps one circular receive transfer running over a
// fixed buffer. The hardware overwrites the buffer forever and Read
// copies whatever arrived since the previous call by comparing the
// channel position with a software cursor. Transmission uses a single
// one-shot transfer: Write returns 0 while the previous one is in
// flight and the caller retries.
//
// All operations are synchronous and never block. Read, Write and
// Status on distinct handles touch distinct slots and may run from
// different goroutines; calls on the same handle, and Open or Close,
// must be serialized by the caller.
package uart
