package rpc

import (
	"bytes"
	"encoding/json"
)

// Request is the packet NestJS NATS clients publish for a message pattern.
type Request struct {
	Pattern string          `json:"pattern,omitempty"`
	Data    json.RawMessage `json:"data"`
	ID      string          `json:"id,omitempty"`
}

// Response is the reply packet. Exactly one of Response and Err is set.
type Response struct {
	ID         string `json:"id,omitempty"`
	Response   any    `json:"response,omitempty"`
	Err        *Error `json:"err,omitempty"`
	IsDisposed bool   `json:"isDisposed"`
}

// DecodeRequest parses a message body. Bodies wrapped in a packet have their
// "data" member unwrapped; any other JSON object is taken as the payload.
func DecodeRequest(body []byte) (Request, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return Request{}, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return Request{}, err
	}

	if _, wrapped := fields["data"]; wrapped {
		var req Request
		if err := json.Unmarshal(body, &req); err != nil {
			return Request{}, err
		}
		return req, nil
	}

	return Request{Data: json.RawMessage(body)}, nil
}

func encodeResponse(id string, result any, rpcErr *Error) ([]byte, error) {
	return json.Marshal(Response{
		ID:         id,
		Response:   result,
		Err:        rpcErr,
		IsDisposed: true,
	})
}
