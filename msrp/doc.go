// Package msrp is the client side of the MRP daemon control channel.
//
// The daemon (mrpd) implements the Multiple Stream Registration Protocol on
// the wire; this package only talks to it over a local UDP socket. Requests
// are ASCII commands zero-padded into fixed 1500-byte datagrams and are fire
// and forget: the daemon never answers a command directly. Instead it emits
// asynchronous notifications whenever a registration on the network changes,
// and the client reads those to learn that a talker appeared or a listener
// became ready.
//
// Commands sent by this package:
//
//	S+D:C=<class>,P=<priority>,V=<vid>         declare the SR domain
//	V++:I=<vid>                                join the VLAN
//	S++:S=<id>,A=<dest>,V=<vid>,Z=..,I=..,P=..,L=..  advertise a stream
//	S--:<same fields>                          withdraw an advertisement
//	S+L:L=<id>,D=2                             listener ready
//	S-L:L=<id>,D=3                             listener leave
//	BYE                                        disconnect
//
// Notifications understood:
//
//	SNE T:S=<id>,...   SJO T:S=<id>,...   talker declaration registered
//	SNE L:L=<id>,D=..  SJO L:L=<id>,D=..  listener declaration registered
//	SLE T:...          SLE L:...          declaration left
//
// A datagram write that does not transfer exactly 1500 bytes is reported as
// ErrCommandFailed wrapping ErrShortWrite; the client never retries on its
// own.
package msrp
