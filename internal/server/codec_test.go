package server

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/gorilla/websocket"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"SourceAcademyGame/internal/dialogue"
	"SourceAcademyGame/internal/game"
)

func TestCodecByName(t *testing.T) {
	for name, want := range map[string]string{"": codecJSON, "JSON": codecJSON, " proto ": codecProto} {
		c, err := codecByName(name)
		if err != nil {
			t.Fatalf("codecByName(%q): %v", name, err)
		}
		if c.Name() != want {
			t.Errorf("codecByName(%q) = %s, want %s", name, c.Name(), want)
		}
	}
	if _, err := codecByName("xml"); err == nil {
		t.Fatal("expected error for unknown codec")
	}
}

func TestProtoCodecEncodesEnvelope(t *testing.T) {
	frameType, data, err := protoCodec{}.Encode(game.OutboundMessage{
		Type:    game.EventDialogueText,
		Payload: textDTO{Box: "box-1", Text: "Hello"},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if frameType != websocket.BinaryMessage {
		t.Fatalf("frame type = %d, want binary", frameType)
	}
	var envelope structpb.Struct
	if err := proto.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	m := envelope.AsMap()
	if m["type"] != game.EventDialogueText {
		t.Errorf("type = %v", m["type"])
	}
	payload, _ := m["payload"].(map[string]any)
	if payload["box"] != "box-1" || payload["text"] != "Hello" {
		t.Errorf("payload = %v", payload)
	}
}

func TestDecodeInbound(t *testing.T) {
	in, err := decodeInbound(websocket.TextMessage, []byte(`{"type":"dialogue:play","payload":{"id":"intro"}}`))
	if err != nil {
		t.Fatalf("decode json: %v", err)
	}
	var play playDTO
	if err := json.Unmarshal(in.Payload, &play); err != nil || play.ID != "intro" {
		t.Fatalf("play payload = %+v, err %v", play, err)
	}

	envelope, _ := structpb.NewStruct(map[string]any{"type": "dialogue:advance"})
	data, _ := proto.Marshal(envelope)
	in, err = decodeInbound(websocket.BinaryMessage, data)
	if err != nil {
		t.Fatalf("decode proto: %v", err)
	}
	if in.Type != msgDialogueAdvance || in.Payload != nil {
		t.Fatalf("inbound = %+v", in)
	}

	bad := [][]byte{[]byte("{"), nil}
	if _, err := decodeInbound(websocket.TextMessage, bad[0]); !errors.Is(err, errBadFrame) {
		t.Errorf("bad json: err = %v", err)
	}
	if _, err := decodeInbound(websocket.BinaryMessage, bad[1]); !errors.Is(err, errBadFrame) {
		t.Errorf("empty envelope: err = %v", err)
	}
}

func TestWSStageEvents(t *testing.T) {
	log := &game.EventLog{}
	stage := newWSStage(log)

	box := stage.NewTextRenderer()
	speaker := stage.NewSpeakerRenderer("Avery")
	if box.Container().ContainerID() != "box-1" {
		t.Fatalf("container = %s", box.Container().ContainerID())
	}

	var clicks int
	unsubscribe := box.OnAdvance(func() { clicks++ })
	stage.advance()
	unsubscribe()
	stage.advance()
	if clicks != 1 || stage.subscribers() != 0 {
		t.Fatalf("clicks = %d, subscribers = %d", clicks, stage.subscribers())
	}

	box.Render("hi")
	speaker.SetSpeaker(&dialogue.SpeakerDetail{SpeakerID: dialogue.SpeakerYou, Position: dialogue.PositionRight})
	speaker.SetSpeaker(nil)
	box.Destroy()

	events := log.Events()
	if len(events) != 4 {
		t.Fatalf("events = %v", log.Types())
	}
	you := events[1].Payload.(speakerDTO)
	if you.Name != "Avery" || you.Position != "right" || you.Box != "box-1" {
		t.Errorf("speaker = %+v", you)
	}
	if hidden := events[2].Payload.(speakerDTO); !hidden.Hidden {
		t.Errorf("cleared speaker = %+v", hidden)
	}
	if events[3].Type != game.EventDialogueDestroy {
		t.Errorf("last event = %s", events[3].Type)
	}
}
