package fastview

import (
	"encoding/json"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// Encoder turns an update into a websocket message type and payload.
type Encoder[T any] func(T) (messageType int, payload []byte, err error)

// JSON sends updates as text frames, which is what the page bootstrap script parses.
func JSON[T any](update T) (int, []byte, error) {
	payload, err := json.Marshal(update)
	return websocket.TextMessage, payload, err
}

// Msgpack sends updates as binary frames, for clients that draw the data themselves.
func Msgpack[T any](update T) (int, []byte, error) {
	payload, err := msgpack.Marshal(update)
	return websocket.BinaryMessage, payload, err
}
