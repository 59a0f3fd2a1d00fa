// Package avtp implements the layer-2 audio frame format carried by AVB
// streams: an 802.1Q tagged Ethernet header, an IEEE 1722 stream header and
// an IEC 61883-6 (AM824) payload header followed by the sample slots.
//
// Frame layout with the VLAN tag present:
//
//	offset  size  field
//	0       6     destination MAC
//	6       6     source MAC
//	12      2     TPID 0x8100
//	14      2     PCP(3) DEI(1) VID(12)
//	16      2     ethertype 0x22F0
//	18      22    1722 stream header (stream id at 22, timestamp at 30)
//	40      10    61883 header (data block continuity at 45)
//	50      48    12 sample slots: label 0x40 + 24-bit big-endian PCM
//
// Header values are held in typed structs (EthernetHeader, StreamHeader,
// CIPHeader) and only converted to network byte order by their MarshalTo
// methods. The transmit path stamps the static parts once with Template and
// then updates the per-packet fields in place through Frame.
package avtp
