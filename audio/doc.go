// Package audio provides the sample source used by the talker and the WAV
// file sink used by the listener.
//
// Samples travel through the system as left-aligned signed 32-bit PCM,
// interleaved by channel. The AM824 wire format keeps the upper 24 bits,
// which is also what the WAV sink writes.
//
//	Talker:   SineSource -> int32 frames -> avtp sample slots
//	Listener: avtp sample slots -> int32 frames -> WAVSink (PCM-24)
package audio
