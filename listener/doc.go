// Package listener receives AVB audio streams.
//
// A Demux drives the control loop: it registers the SR class domain, joins
// its VLAN, then polls the reservation client for talker advertisements and,
// for each accepted stream seen for the first time, starts one consumer. A
// consumer that cannot be started gives its stream back to the registry, so
// the next advertisement tries again. A consumer declares the listener ready, opens a
// capture handle with a coarse destination-address filter shared by all
// accepted streams, and forwards the samples of frames carrying its own
// stream id to a Sink. Frames of other streams that pass the shared filter
// are dropped by the consumer.
//
// Blocking capture reads cannot observe a cancellation flag, so Stop closes
// every capture handle to unblock its reader before flushing the sinks and
// withdrawing the listener declarations.
package listener
