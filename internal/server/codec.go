package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"SourceAcademyGame/internal/game"
)

var errBadFrame = errors.New("server: malformed frame")

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// codec turns outbound events into websocket frames.
type codec interface {
	Name() string
	Encode(msg game.OutboundMessage) (frameType int, data []byte, err error)
}

const (
	codecJSON  = "json"
	codecProto = "proto"
)

func codecByName(name string) (codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", codecJSON:
		return jsonCodec{}, nil
	case codecProto:
		return protoCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return codecJSON }

func (jsonCodec) Encode(msg game.OutboundMessage) (int, []byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal %s: %w", msg.Type, err)
	}
	return websocket.TextMessage, data, nil
}

// protoCodec sends each event as a binary google.protobuf.Struct of the
// form {"type": ..., "payload": {...}}.
type protoCodec struct{}

func (protoCodec) Name() string { return codecProto }

func (protoCodec) Encode(msg game.OutboundMessage) (int, []byte, error) {
	envelope, err := envelopeToProto(msg)
	if err != nil {
		return 0, nil, err
	}
	data, err := proto.Marshal(envelope)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal %s: %w", msg.Type, err)
	}
	return websocket.BinaryMessage, data, nil
}

// envelopeToProto converts an event into a Struct. The payload goes through
// JSON so that struct tags decide the field names on both codecs.
func envelopeToProto(msg game.OutboundMessage) (*structpb.Struct, error) {
	fields := map[string]any{"type": msg.Type}
	if msg.Payload != nil {
		raw, err := json.Marshal(msg.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", msg.Type, err)
		}
		var payload any
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", msg.Type, err)
		}
		fields["payload"] = payload
	}
	return structpb.NewStruct(fields)
}

// decodeInbound reads a client frame. Text frames carry JSON and binary
// frames carry a Struct envelope, whichever codec the connection writes.
func decodeInbound(frameType int, data []byte) (inboundMessage, error) {
	switch frameType {
	case websocket.TextMessage:
		var in inboundMessage
		if err := json.Unmarshal(data, &in); err != nil {
			return inboundMessage{}, fmt.Errorf("%w: %v", errBadFrame, err)
		}
		return in, nil
	case websocket.BinaryMessage:
		var envelope structpb.Struct
		if err := proto.Unmarshal(data, &envelope); err != nil {
			return inboundMessage{}, fmt.Errorf("%w: %v", errBadFrame, err)
		}
		return inboundFromProto(&envelope)
	default:
		return inboundMessage{}, fmt.Errorf("%w: frame type %d", errBadFrame, frameType)
	}
}

func inboundFromProto(envelope *structpb.Struct) (inboundMessage, error) {
	fields := envelope.GetFields()
	typ := fields["type"].GetStringValue()
	if typ == "" {
		return inboundMessage{}, fmt.Errorf("%w: missing type", errBadFrame)
	}
	in := inboundMessage{Type: typ}
	if payload, ok := fields["payload"]; ok {
		raw, err := payload.MarshalJSON()
		if err != nil {
			return inboundMessage{}, fmt.Errorf("%w: %v", errBadFrame, err)
		}
		in.Payload = raw
	}
	return in, nil
}
