// Package limits provides centralized size constants and validation functions
// for the AVB talker and listener. It keeps the control-channel datagram size,
// stream count bounds and frame geometry in one place so the reservation
// client, the packet pool and the configuration loader agree on them.
//
// # Size Hierarchy
//
//   - ControlDatagramSize (1500 bytes): every command sent to the MRP daemon is
//     zero-padded to exactly this size. A shorter write is a protocol failure.
//
//   - MaxTalkerStreams (256): the talker derives the last stream id octet from
//     the stream index, so more than 256 streams cannot be addressed.
//
//   - DefaultAcceptedStreams (2): default capacity of the listener's accepted
//     stream set. The capacity is configurable but validated here.
//
// # Validation Functions
//
//	if err := limits.ValidateStreamCount(n); err != nil {
//	    // ErrStreamCountInvalid
//	}
//
//	if err := limits.ValidateDatagram(buf); err != nil {
//	    // ErrDatagramEmpty or ErrDatagramTooLarge
//	}
package limits
