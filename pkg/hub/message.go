// Package hub broadcasts reports and frames to websocket subscribers with
// a channel-based fan-out.
package hub

import "github.com/gofiber/websocket/v2"

// Message is one broadcast payload. Frame is the websocket opcode it is
// written with: websocket.TextMessage for reports, websocket.BinaryMessage
// for JPEG frames.
type Message struct {
	Frame int
	Data  []byte
}

// Binary reports whether m goes out as a binary frame.
func (m Message) Binary() bool {
	return m.Frame == websocket.BinaryMessage
}
