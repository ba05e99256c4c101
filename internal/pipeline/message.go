package pipeline

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Protocol message types. The wire format itself is a collaborator concern;
// this framing is the minimal envelope the lifecycle layer needs to route
// messages through the stage slots.
const (
	ProtocolVersion byte = 1

	MsgTypeAuth    byte = 1
	MsgTypeRequest byte = 2
)

// maxFrameBytes bounds a single frame to keep a misbehaving peer from
// forcing unbounded allocation.
const maxFrameBytes = 16 << 20

// Message is one decoded protocol frame.
type Message struct {
	Version   byte
	Type      byte
	SessionID string
	Body      []byte

	// payload is the pooled backing buffer Body points into.
	payload []byte
}

// Release returns the frame's backing buffer to the pool. The chain calls it
// once an event has fully traversed the stages; Body must not be retained
// afterwards.
func (m *Message) Release() {
	if m.payload == nil {
		return
	}
	frameBuffers.put(m.payload)
	m.payload = nil
	m.Body = nil
}

// ReadMessage decodes one length-prefixed frame:
// u32 length, version, type, session-id length, session-id, body.
func ReadMessage(r io.Reader) (*Message, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	if length < 3 {
		return nil, fmt.Errorf("frame too short: %d bytes", length)
	}
	if length > maxFrameBytes {
		return nil, fmt.Errorf("frame exceeds %d bytes: %d", maxFrameBytes, length)
	}
	payload := frameBuffers.get(int(length))
	if _, err := io.ReadFull(r, payload); err != nil {
		frameBuffers.put(payload)
		return nil, err
	}
	sidLen := int(payload[2])
	if 3+sidLen > len(payload) {
		frameBuffers.put(payload)
		return nil, fmt.Errorf("session id length %d exceeds frame", sidLen)
	}
	return &Message{
		Version:   payload[0],
		Type:      payload[1],
		SessionID: string(payload[3 : 3+sidLen]),
		Body:      payload[3+sidLen:],
		payload:   payload,
	}, nil
}

// WriteMessage encodes m in the frame format ReadMessage decodes.
func WriteMessage(w io.Writer, m *Message) error {
	sid := []byte(m.SessionID)
	if len(sid) > 255 {
		return fmt.Errorf("session id too long: %d bytes", len(sid))
	}
	payload := make([]byte, 0, 3+len(sid)+len(m.Body))
	payload = append(payload, m.Version, m.Type, byte(len(sid)))
	payload = append(payload, sid...)
	payload = append(payload, m.Body...)
	if err := binary.Write(w, binary.BigEndian, uint32(len(payload))); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
