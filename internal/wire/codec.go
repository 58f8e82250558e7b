package wire

import "strings"

// Encode is a pure function from a Message to the bytes of its wire frame,
// NOT including the trailing "\n" terminator (the framed transport owns
// that). Encode always produces a frame that round-trips through Decode to
// an equal Message.
func Encode(m Message) []byte {
	var b strings.Builder
	b.Grow(2 + 2 + 2 + len(m.payload) + 2)

	b.WriteString(string(m.kind))
	writeIDField(&b, m.originID, m.hasOrig)
	writeIDField(&b, m.destID, m.hasDest)
	writePayloadField(&b, m.payload, m.hasPay)

	return []byte(b.String())
}

func writeIDField(b *strings.Builder, id string, present bool) {
	if !present {
		b.WriteByte('-')
		return
	}
	b.WriteString(id)
}

func writePayloadField(b *strings.Builder, payload string, present bool) {
	if !present {
		b.WriteByte('-')
		return
	}
	b.WriteString(payload)
}

// Decode parses a single wire frame (without its trailing "\n") into a
// Message. It fails with ErrInvalidFrame when the buffer is empty, the
// msgid is unknown, or a supposedly-present ID field isn't exactly two
// digits.
func Decode(frame []byte) (Message, error) {
	if len(frame) < 2 {
		return Message{}, invalidFrame(frame)
	}

	kind := Kind(frame[:2])
	if !knownKinds[kind] {
		return Message{}, invalidFrame(frame)
	}
	rest := frame[2:]

	originID, hasOrig, rest, err := parseIDField(rest)
	if err != nil {
		return Message{}, invalidFrame(frame)
	}

	destID, hasDest, rest, err := parseIDField(rest)
	if err != nil {
		return Message{}, invalidFrame(frame)
	}

	payload, hasPay := parsePayloadField(rest)

	return Message{
		kind:     kind,
		originID: originID,
		hasOrig:  hasOrig,
		destID:   destID,
		hasDest:  hasDest,
		payload:  payload,
		hasPay:   hasPay,
	}, nil
}

func parseIDField(b []byte) (id string, present bool, rest []byte, err error) {
	if len(b) == 0 {
		return "", false, nil, ErrInvalidFrame
	}
	if b[0] == '-' {
		return "", false, b[1:], nil
	}
	if len(b) < 2 || !isDigit(b[0]) || !isDigit(b[1]) {
		return "", false, nil, ErrInvalidFrame
	}
	return string(b[:2]), true, b[2:], nil
}

// parsePayloadField consumes the remainder of the frame. A lone "-" means
// absent; anything else (including nothing at all) is the verbatim,
// possibly-empty payload.
func parsePayloadField(b []byte) (string, bool) {
	if len(b) == 1 && b[0] == '-' {
		return "", false
	}
	return string(b), true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func joinIDs(ids []string) string {
	return strings.Join(ids, " ")
}

func splitIDs(s string) []string {
	return strings.Fields(s)
}
