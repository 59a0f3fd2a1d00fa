// Package afpacket is the Linux raw-socket backend of the talker and the
// listener.
//
// OpenCapture returns a listener.Capture: an AF_PACKET socket bound to one
// interface, joined to the stream multicast groups and narrowed by a classic
// BPF program on the destination address. Its reads park in the runtime
// poller, so closing the handle from another goroutine unblocks them.
//
// OpenDevice returns a device.Device for hosts without a launch-time capable
// NIC driver. Xmit queues packets on a bounded software ring and Clean sends
// every queued packet whose launch time has passed, which gives the transmit
// scheduler the same back pressure a hardware ring would.
package afpacket
