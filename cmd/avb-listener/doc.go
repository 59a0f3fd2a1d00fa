// Command avb-listener waits for talker advertisements of the configured
// accepted streams, answers each with a listener ready declaration and
// records every stream to its own WAV file.
//
// # Usage
//
//	avb-listener -i eth0 [options]
//
// # Options
//
//	-i string             Network interface (required)
//	-f string             Output file base name; stream i goes to <f>_<i>.wav (default output)
//	-dir string           Output directory
//	-monitor string       Also send each stream as RTP L16 to host:port (+2 per stream)
//	-mrpd string          MRP daemon control address (default 127.0.0.1:7500)
//	-config string        YAML configuration file
//	-env string           Environment file with AVB_* variables (default .env)
//	-metrics-addr string  Serve Prometheus metrics on this address
//	-log-level string     Log level (default info)
//	-log-json             Log in JSON
//
// The accepted stream set (id and destination address of each stream) is
// taken from the configuration file or AVB_ACCEPTED_STREAMS, for example
//
//	AVB_ACCEPTED_STREAMS=a0:36:9f:4c:92:55:00:00@91:e0:f0:00:0e:80
//
// Advertisements for streams outside the set are ignored.
//
// # Shutdown
//
// SIGINT or SIGTERM stops the control loop and every consumer, closes the
// WAV files, withdraws the ready declarations and closes the daemon
// session.
//
// # Exit Codes
//
//	0  Normal shutdown
//	1  Configuration error or session failure
package main
