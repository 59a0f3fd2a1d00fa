package msrp

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/opd-ai/avbstream/stream"
)

// EventKind classifies a daemon notification.
type EventKind uint8

const (
	// EventUnknown is a notification this client does not act on.
	EventUnknown EventKind = iota
	// EventJoin is a new or joined declaration (SNE, SJO).
	EventJoin
	// EventLeave is a declaration that left (SLE).
	EventLeave
	// EventMalformed is a recognized notification with a missing or bad id.
	EventMalformed
)

func (k EventKind) String() string {
	switch k {
	case EventJoin:
		return "join"
	case EventLeave:
		return "leave"
	case EventMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Declaration is the declaration type a notification refers to.
type Declaration uint8

const (
	// DeclTalker is a talker advertise declaration (T:).
	DeclTalker Declaration = iota
	// DeclListener is a listener declaration (L:).
	DeclListener
)

func (d Declaration) String() string {
	if d == DeclListener {
		return "listener"
	}
	return "talker"
}

// Event is a parsed notification.
type Event struct {
	Kind        EventKind
	Declaration Declaration
	StreamID    stream.ID
	// Substate is the listener D field, or 0 when absent.
	Substate int
	// Raw is the notification text without padding.
	Raw string
}

const prefixLen = len("SJO T:")

// ParseNotification classifies one datagram read from the daemon. It never
// fails: anything it cannot use becomes EventUnknown or EventMalformed.
func ParseNotification(buf []byte) Event {
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	raw := strings.TrimSpace(string(buf))
	ev := Event{Kind: EventUnknown, Raw: raw}

	if len(raw) < prefixLen || raw[3] != ' ' || raw[5] != ':' {
		return ev
	}

	var kind EventKind
	switch raw[:3] {
	case "SNE", "SJO":
		kind = EventJoin
	case "SLE":
		kind = EventLeave
	default:
		return ev
	}

	var idKey string
	switch raw[4] {
	case 'T':
		ev.Declaration = DeclTalker
		idKey = "S"
	case 'L':
		ev.Declaration = DeclListener
		idKey = "L"
	default:
		return ev
	}

	fields := parseFields(raw[prefixLen:])
	idText, ok := fields[idKey]
	if !ok {
		ev.Kind = EventMalformed
		return ev
	}
	id, err := stream.ParseID(idText)
	if err != nil || len(idText) != 2*stream.IDSize {
		ev.Kind = EventMalformed
		return ev
	}
	ev.StreamID = id

	if d, ok := fields["D"]; ok {
		n, err := strconv.Atoi(d)
		if err != nil {
			ev.Kind = EventMalformed
			return ev
		}
		ev.Substate = n
	}

	ev.Kind = kind
	return ev
}

// parseFields splits "K=V, K=V" into a map. The first occurrence of a key wins.
func parseFields(s string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		if _, dup := out[k]; !dup {
			out[k] = strings.TrimSpace(v)
		}
	}
	return out
}
