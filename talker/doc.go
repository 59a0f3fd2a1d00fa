// Package talker produces the AVB audio streams.
//
// Session walks the reservation sequence with the MRP daemon, prepares the
// transmit pool and hands control to a Scheduler. The Scheduler owns the pool
// and runs on a single locked OS thread at elevated priority: it round-robins
// the reserved streams, stamps each buffer with the stream's destination, id,
// launch time, presentation time, sequence number and audio samples, and
// submits it to the hardware queue. It never sleeps; pacing comes from the
// launch times the hardware honours.
package talker
