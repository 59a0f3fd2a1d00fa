// Package stream holds the stream descriptors shared by the reservation
// client, the transmit scheduler and the receive demultiplexer.
//
// A Registry is built once at configuration time and never grows after the
// first goroutine starts. Each descriptor's immutable fields (ID, Destination,
// Index) are set on Add; the only mutable fields are the one-shot spawned flag
// (written by the reservation client when it claims a stream) and the received
// frame counter (written by the consumer goroutine that owns the stream). Both
// are atomics so readers on other goroutines observe a consistent value.
//
// Stream ids are 8 bytes. A talker derives them from its own link address
// followed by a 16-bit stream index:
//
//	streams := stream.TalkerStreams(stationMAC, 2, stream.DefaultDestination)
//	// a0:36:9f:4c:92:55:00:00 -> 91:e0:f0:00:0e:80
//	// a0:36:9f:4c:92:55:00:01 -> 91:e0:f0:00:0e:81
package stream
