package tutor_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/primitive-tutor/backend/internal/assistant"
	"github.com/primitive-tutor/backend/internal/models"
	"github.com/primitive-tutor/backend/internal/tutor"
)

func startGateway(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	h := assistant.NewHandler(assistant.NewMockClient())
	srv := httptest.NewServer(http.HandlerFunc(h.HandleSession))
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func gatewayConfig() models.SessionConfig {
	return models.SessionConfig{
		PrimitiveType: models.PrimitiveFractionBar,
		InstanceID:    "widget-1",
		Topic:         "equivalent fractions",
		GradeLevel:    "4",
	}
}

func nextFrame(t *testing.T, inbound <-chan tutor.InboundMessage) tutor.InboundMessage {
	t.Helper()
	select {
	case msg, ok := <-inbound:
		if !ok {
			t.Fatal("inbound channel closed while waiting for a frame")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an inbound frame")
	}
	return tutor.InboundMessage{}
}

func TestWSTransportSpeaksGatewayProtocol(t *testing.T) {
	_, wsURL := startGateway(t)
	tr := tutor.NewWSTransport(wsURL)

	if err := tr.Connect(context.Background(), gatewayConfig()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer tr.Disconnect()

	err := tr.Send(tutor.OutboundMessage{
		Kind: tutor.OutboundUserText,
		Text: "is 2/4 equal to 1/2?",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	inbound := tr.Receive()

	first := nextFrame(t, inbound)
	if first.Kind != tutor.InboundState || first.Value != tutor.StateRespondingStart {
		t.Errorf("first frame = %+v, want responding_start", first)
	}
	second := nextFrame(t, inbound)
	if second.Kind != tutor.InboundAssistantText {
		t.Errorf("second frame = %+v, want assistant_text", second)
	}
	if !strings.Contains(second.Text, "is 2/4 equal to 1/2?") {
		t.Errorf("reply %q does not reference the learner's message", second.Text)
	}
	third := nextFrame(t, inbound)
	if third.Kind != tutor.InboundState || third.Value != tutor.StateRespondingEnd {
		t.Errorf("third frame = %+v, want responding_end", third)
	}
}

func TestWSTransportSilentEventDrawsNoFrames(t *testing.T) {
	_, wsURL := startGateway(t)
	tr := tutor.NewWSTransport(wsURL)

	if err := tr.Connect(context.Background(), gatewayConfig()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer tr.Disconnect()

	err := tr.Send(tutor.OutboundMessage{
		Kind:          tutor.OutboundSystemEvent,
		Silent:        true,
		PrimitiveData: []byte(`{"bars":[2,4]}`),
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case msg, ok := <-tr.Receive():
		if ok {
			t.Errorf("silent event drew frame %+v", msg)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWSTransportInboundClosesOnDrop(t *testing.T) {
	// httptest.Server forgets hijacked (websocket-upgraded) connections, so
	// CloseClientConnections cannot drop them; capture the hijacked conn via
	// ConnState and close it directly to simulate the drop server-side.
	h := assistant.NewHandler(assistant.NewMockClient())
	srv := httptest.NewUnstartedServer(http.HandlerFunc(h.HandleSession))
	hijacked := make(chan net.Conn, 1)
	srv.Config.ConnState = func(c net.Conn, state http.ConnState) {
		if state == http.StateHijacked {
			hijacked <- c
		}
	}
	srv.Start()
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	tr := tutor.NewWSTransport(wsURL)

	if err := tr.Connect(context.Background(), gatewayConfig()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	inbound := tr.Receive()

	select {
	case c := <-hijacked:
		c.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("server never hijacked the connection")
	}

	select {
	case _, ok := <-inbound:
		if ok {
			t.Error("expected channel close, got a frame")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("inbound channel not closed after connection drop")
	}
}

func TestWSTransportConnectHonorsContext(t *testing.T) {
	tr := tutor.NewWSTransport("ws://127.0.0.1:1/session")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tr.Connect(ctx, gatewayConfig())
	if err == nil {
		t.Fatal("Connect expected error, got nil")
	}
	var connErr *tutor.ConnectionError
	if !errors.As(err, &connErr) {
		t.Errorf("error = %T, want *ConnectionError", err)
	}
}

func TestWSTransportSendBeforeConnect(t *testing.T) {
	tr := tutor.NewWSTransport("ws://127.0.0.1:1/session")

	if err := tr.Send(tutor.OutboundMessage{Kind: tutor.OutboundUserText, Text: "hello"}); err == nil {
		t.Error("Send before Connect expected error, got nil")
	}
	if err := tr.Disconnect(); err != nil {
		t.Errorf("Disconnect before Connect = %v, want nil", err)
	}
}

// End to end: the session controller over a real socket against the gateway.
func TestSessionControllerOverWebSocket(t *testing.T) {
	_, wsURL := startGateway(t)
	ctrl := tutor.NewSessionController(tutor.NewWSTransport(wsURL))

	if err := ctrl.Connect(context.Background(), gatewayConfig()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer ctrl.Disconnect()

	if err := ctrl.SendText("what does the bottom number mean?", false); err != nil {
		t.Fatalf("SendText failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(ctrl.Turns()) == 2 && !ctrl.IsAIResponding() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	turns := ctrl.Turns()
	if len(turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(turns))
	}
	if turns[0].Role != models.RoleUser || turns[1].Role != models.RoleAssistant {
		t.Errorf("turn roles = %q, %q, want user then assistant", turns[0].Role, turns[1].Role)
	}
	if ctrl.IsAIResponding() {
		t.Error("IsAIResponding = true after the reply landed")
	}
}
