// Command avb-talker advertises AVB audio streams through the local MRP
// daemon and transmits a sine tone on every reserved stream once a listener
// reports ready.
//
// # Usage
//
//	avb-talker -i eth0 [options]
//
// # Options
//
//	-i string             Network interface (required)
//	-n int                Number of streams, 1-256 (default 1)
//	-d string             Multicast destination base address (default 91:e0:f0:00:0e:80)
//	-mrpd string          MRP daemon control address (default 127.0.0.1:7500)
//	-gain float           Sine tone gain, 0-1 (default 0.5)
//	-ring int             Software transmit ring size (default 64)
//	-config string        YAML configuration file
//	-env string           Environment file with AVB_* variables (default .env)
//	-metrics-addr string  Serve Prometheus metrics on this address
//	-log-level string     Log level (default info)
//	-log-json             Log in JSON
//
// Settings are layered: built-in defaults, the YAML file, AVB_* variables
// from the process environment or the env file, then flags given on the
// command line.
//
// Stream i uses stream id station:i and destination base+i, where station
// is the interface's hardware address.
//
// # Shutdown
//
// SIGINT or SIGTERM stops the transmit loop at the next packet boundary.
// The streams are then unadvertised, the class bandwidth released and the
// daemon session closed with BYE.
//
// # Exit Codes
//
//	0  Normal shutdown
//	1  Configuration error or session failure
package main
