package afpacket

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/net/bpf"

	"github.com/opd-ai/avbstream/limits"
	"github.com/opd-ai/avbstream/stream"
)

// snapLen is the number of bytes an accepting filter passes up.
const snapLen = 0x40000

// DestinationFilter builds a classic BPF program that accepts frames whose
// destination address is one of dests. An empty list accepts nothing.
//
// Each address is one four-instruction block comparing the first four and
// the last two octets. A mismatch falls through to the next block; a match
// jumps to the final accept.
func DestinationFilter(dests []stream.MAC) ([]bpf.Instruction, error) {
	n := len(dests)
	if n > limits.MaxAcceptedStreams {
		return nil, fmt.Errorf("%w: %d", ErrTooManyDestinations, n)
	}

	prog := make([]bpf.Instruction, 0, 4*n+2)
	for i, d := range dests {
		hi := binary.BigEndian.Uint32(d[0:4])
		lo := uint32(binary.BigEndian.Uint16(d[4:6]))
		toAccept := uint8(4*(n-i) - 3)
		prog = append(prog,
			bpf.LoadAbsolute{Off: 0, Size: 4},
			bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: hi, SkipTrue: 2},
			bpf.LoadAbsolute{Off: 4, Size: 2},
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: lo, SkipTrue: toAccept},
		)
	}
	prog = append(prog,
		bpf.RetConstant{Val: 0},
		bpf.RetConstant{Val: snapLen},
	)
	return prog, nil
}

// assembleFilter builds and assembles the destination filter.
func assembleFilter(dests []stream.MAC) ([]bpf.RawInstruction, error) {
	prog, err := DestinationFilter(dests)
	if err != nil {
		return nil, err
	}
	raw, err := bpf.Assemble(prog)
	if err != nil {
		return nil, fmt.Errorf("assemble filter: %w", err)
	}
	return raw, nil
}
