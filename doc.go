// Package avbstream implements an Audio Video Bridging (IEEE 802.1Qav /
// 1722) audio talker and listener for Linux.
//
// Both sides reserve bandwidth through a local MRP daemon (mrpd) reached
// over a fixed-size UDP control channel, then move 61883-6 AM824 audio in
// AVTP frames directly on an Ethernet interface.
//
// # Packages
//
//   - stream: stream ids, MAC addresses and the accepted stream registry
//   - avtp: frame template construction and per-packet field stamping
//   - pool: the talker's pre-templated transmit buffers
//   - device: the transmit driver interface, with a fake in devicetest
//   - afpacket: raw socket transmit device and filtered capture
//   - msrp: the reservation client and its session state machine
//   - talker: the transmit scheduler and the talker session
//   - listener: the receive demultiplexer and per-stream consumers
//   - audio, rtp: sample sources and sinks (sine tone, WAV, RTP monitor)
//   - clock: local and network time
//   - config, metrics, limits: settings, Prometheus collectors and bounds
//
// The commands live in cmd/avb-talker and cmd/avb-listener.
//
// # Talker
//
//	dev, _ := afpacket.OpenDevice("eth0", afpacket.DeviceConfig{})
//	client, _ := msrp.Connect(msrp.Config{Server: "127.0.0.1:7500"})
//	src, _ := audio.NewSineSource(limits.Channels, 0.5)
//	session, _ := talker.NewSession(cfg, client, dev, src, clock.SystemSource{}, nil)
//	err := session.Run(ctx)
//
// Run registers the class domain, joins the VLAN, reserves class bandwidth,
// advertises every stream and waits for a listener before transmitting.
// Cancelling ctx unwinds all of it.
//
// # Listener
//
//	client, _ := msrp.Connect(msrp.Config{Server: "127.0.0.1:7500", Registry: registry})
//	demux, _ := listener.NewDemux(registry, client, opener, listener.WAVSinks("", "output"), nil)
//	err := demux.Run(ctx)
//	demux.Stop()
//	client.Disconnect()
//
// Run registers the class domain and joins the VLAN before polling. Only
// streams present in the registry are answered; each gets at most one
// consumer, whatever the number of advertisements received.
package avbstream
