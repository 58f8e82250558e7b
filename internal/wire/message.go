// Copyright 2026 The equipmesh authors.
//
// Package wire implements the compact textual frame protocol equipmesh peers
// speak to each other: a two-digit message tag, two optional two-digit ID
// fields, and a free-form payload, concatenated without separators other than
// the "-" absence sentinel and terminated on the wire by "\n".
package wire

import (
	"errors"
	"fmt"
)

// EquipmentID is a two-digit decimal equipment identifier, e.g. "01".
type EquipmentID string

// Kind identifies one of the eight message tags. The string form is always
// the two-digit decimal tag that appears on the wire.
type Kind string

const (
	ReqAdd  Kind = "01"
	ReqRem  Kind = "02"
	ResAdd  Kind = "03"
	ResList Kind = "04"
	ReqInf  Kind = "05"
	ResInf  Kind = "06"
	ErrMsg  Kind = "07"
	OkMsg   Kind = "08"
)

// Error/Ok codes (spec.md §3).
const (
	CodeEquipmentNotFound      = "01"
	CodeSourceNotFound         = "02"
	CodeTargetNotFound         = "03"
	CodeEquipmentLimitExceeded = "04"

	CodeSuccessfulRemoval = "01"
)

var codeDescriptions = map[Kind]map[string]string{
	ErrMsg: {
		CodeEquipmentNotFound:      "Equipment not found",
		CodeSourceNotFound:         "Source equipment not found",
		CodeTargetNotFound:         "Target equipment not found",
		CodeEquipmentLimitExceeded: "Equipment limit exceeded",
	},
	OkMsg: {
		CodeSuccessfulRemoval: "Successful removal",
	},
}

// Describe returns the human string for an ERROR/OK payload code, or the
// code itself if it isn't recognized.
func (k Kind) Describe(code string) string {
	if m, ok := codeDescriptions[k]; ok {
		if desc, ok := m[code]; ok {
			return desc
		}
	}
	return code
}

// knownKinds enumerates the tags the decoder accepts.
var knownKinds = map[Kind]bool{
	ReqAdd: true, ReqRem: true, ResAdd: true, ResList: true,
	ReqInf: true, ResInf: true, ErrMsg: true, OkMsg: true,
}

// ErrInvalidFrame is returned (wrapped in a *FrameError) for any malformed
// input: an empty buffer, an unknown tag, or an ID field that isn't exactly
// two digits.
var ErrInvalidFrame = errors.New("wire: invalid frame")

// FrameError carries the offending bytes alongside ErrInvalidFrame so callers
// can log the culprit without string-matching the error text.
type FrameError struct {
	Frame []byte
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("%v: %q", e.Err, e.Frame)
}

func (e *FrameError) Unwrap() error { return e.Err }

func invalidFrame(frame []byte) error {
	return &FrameError{Frame: frame, Err: ErrInvalidFrame}
}

// Message is the tagged variant every equipmesh frame decodes into. The
// typed constructors populate the three optional components according to
// the Kind's field table in spec.md §3; Decode populates whichever
// components the frame carries, without checking them against the Kind.
// An absent component's accessor returns the zero value and false.
type Message struct {
	kind     Kind
	originID string
	hasOrig  bool
	destID   string
	hasDest  bool
	payload  string
	hasPay   bool
}

// Kind returns the message's tag.
func (m Message) Kind() Kind { return m.kind }

// OriginID returns the originid field and whether it was present.
func (m Message) OriginID() (string, bool) { return m.originID, m.hasOrig }

// DestID returns the destid field and whether it was present.
func (m Message) DestID() (string, bool) { return m.destID, m.hasDest }

// Payload returns the payload field and whether it was present.
func (m Message) Payload() (string, bool) { return m.payload, m.hasPay }

func (m Message) String() string {
	return fmt.Sprintf("Message{kind:%s origin:%q dest:%q payload:%q}",
		m.kind, m.originID, m.destID, m.payload)
}

// Typed constructors. Each builds the Message shape its Kind's field table
// in spec.md §3 requires; fields the kind doesn't carry are left absent.

func NewReqAdd() Message {
	return Message{kind: ReqAdd}
}

func NewReqRem(originID string) Message {
	return Message{kind: ReqRem, originID: originID, hasOrig: true}
}

func NewResAdd(newID string) Message {
	return Message{kind: ResAdd, payload: newID, hasPay: true}
}

func NewResList(ids []string) Message {
	payload := joinIDs(ids)
	return Message{kind: ResList, payload: payload, hasPay: true}
}

func NewReqInf(originID, destID string) Message {
	return Message{kind: ReqInf, originID: originID, hasOrig: true, destID: destID, hasDest: true}
}

func NewResInf(originID, destID, measurement string) Message {
	return Message{
		kind: ResInf,
		originID: originID, hasOrig: true,
		destID: destID, hasDest: true,
		payload: measurement, hasPay: true,
	}
}

// NewError builds an ERROR message. destID is optional (pass "" and false to
// omit it, e.g. when there's no meaningful destination yet).
func NewError(destID string, hasDest bool, code string) Message {
	return Message{kind: ErrMsg, destID: destID, hasDest: hasDest, payload: code, hasPay: true}
}

// NewOk builds an OK message. destID is optional, same convention as NewError.
func NewOk(destID string, hasDest bool, code string) Message {
	return Message{kind: OkMsg, destID: destID, hasDest: hasDest, payload: code, hasPay: true}
}

// IDs splits a RES_LIST payload back into its constituent equipment IDs.
// Returns nil for an empty directory.
func (m Message) IDs() []string {
	payload, ok := m.Payload()
	if !ok || payload == "" {
		return nil
	}
	return splitIDs(payload)
}
