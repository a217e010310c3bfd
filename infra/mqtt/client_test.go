package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/oilroute/dispatch/core/model"
	coremqtt "github.com/oilroute/dispatch/core/mqtt"
	"github.com/oilroute/dispatch/infra/logger"
)

type fakeToken struct{ err error }

func (t fakeToken) Wait() bool                     { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t fakeToken) Error() error { return t.err }

type publishedMsg struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakePaho struct {
	published []publishedMsg
	failures  int
}

func (f *fakePaho) IsConnected() bool       { return true }
func (f *fakePaho) Connect() paho.Token     { return fakeToken{} }
func (f *fakePaho) Disconnect(quiesce uint) {}
func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	if f.failures > 0 {
		f.failures--
		return fakeToken{err: errors.New("broker unavailable")}
	}
	f.published = append(f.published, publishedMsg{topic, qos, retained, payload.([]byte)})
	return fakeToken{}
}
func (f *fakePaho) Subscribe(topic string, qos byte, cb paho.MessageHandler) paho.Token {
	return fakeToken{}
}

type fakeMessage struct{ payload []byte }

func (fakeMessage) Duplicate() bool   { return false }
func (fakeMessage) Qos() byte         { return 0 }
func (fakeMessage) Retained() bool    { return false }
func (fakeMessage) Topic() string     { return "dispatch/ack" }
func (fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte { return m.payload }
func (fakeMessage) Ack()              {}

func newTestClient(cli *fakePaho) *PahoClient {
	return &PahoClient{
		cli:        cli,
		ackTopic:   "dispatch/ack",
		ackChans:   make(map[string]chan struct{}),
		logger:     logger.New("mqtt_test"),
		qos:        map[string]byte{"dispatch": 1},
		maxRetries: 2,
		backoff:    time.Millisecond,
	}
}

func testOrder() model.DispatchOrder {
	start := time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC)
	return model.DispatchOrder{
		ID:           "o1",
		SiteID:       "depot_a",
		OilType:      "diesel",
		Volume:       300,
		SourceTankID: "SRC",
		TargetTankID: "DST",
		Path:         []string{"b1", "b2"},
		Start:        start,
		End:          start.Add(time.Hour),
	}
}

func TestSendDispatchPublishesInstruction(t *testing.T) {
	cli := &fakePaho{}
	p := newTestClient(cli)

	cmdID, err := p.SendDispatch(testOrder())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if cmdID == "" {
		t.Fatalf("expected a command id")
	}
	if len(cli.published) != 1 {
		t.Fatalf("published = %d, want 1", len(cli.published))
	}
	msg := cli.published[0]
	if msg.topic != "site/depot_a/dispatch" {
		t.Errorf("topic = %s, want site/depot_a/dispatch", msg.topic)
	}
	if msg.qos != 1 {
		t.Errorf("qos = %d, want 1", msg.qos)
	}

	var instr struct {
		CommandID    string   `json:"command_id"`
		OrderID      string   `json:"order_id"`
		SiteID       string   `json:"site_id"`
		OilType      string   `json:"oil_type"`
		Volume       float64  `json:"volume"`
		SourceTankID string   `json:"source_tank_id"`
		TargetTankID string   `json:"target_tank_id"`
		Path         []string `json:"path"`
		Start        int64    `json:"start"`
		End          int64    `json:"end"`
	}
	if err := json.Unmarshal(msg.payload, &instr); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if instr.CommandID != cmdID || instr.OrderID != "o1" || instr.SiteID != "depot_a" {
		t.Errorf("identity = %s/%s/%s", instr.CommandID, instr.OrderID, instr.SiteID)
	}
	if instr.OilType != "diesel" || instr.Volume != 300 {
		t.Errorf("cargo = %s/%.1f", instr.OilType, instr.Volume)
	}
	if instr.SourceTankID != "SRC" || instr.TargetTankID != "DST" || len(instr.Path) != 2 {
		t.Errorf("route = %s/%s/%v", instr.SourceTankID, instr.TargetTankID, instr.Path)
	}
	if instr.Start != testOrder().Start.UnixMilli() || instr.End != testOrder().End.UnixMilli() {
		t.Errorf("window = %d/%d", instr.Start, instr.End)
	}
}

func TestSendDispatchRetriesTransientFailures(t *testing.T) {
	cli := &fakePaho{failures: 1}
	p := newTestClient(cli)

	if _, err := p.SendDispatch(testOrder()); err != nil {
		t.Fatalf("send after retry: %v", err)
	}
	if len(cli.published) != 1 {
		t.Errorf("published = %d, want 1", len(cli.published))
	}
}

func TestSendDispatchGivesUpAfterRetries(t *testing.T) {
	cli := &fakePaho{failures: 10}
	p := newTestClient(cli)

	if _, err := p.SendDispatch(testOrder()); err == nil {
		t.Errorf("persistent failure must surface")
	}
}

func TestWaitForAck(t *testing.T) {
	cli := &fakePaho{}
	p := newTestClient(cli)

	cmdID, err := p.SendDispatch(testOrder())
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	ack, _ := json.Marshal(map[string]string{"command_id": cmdID})
	go p.onAck(nil, fakeMessage{payload: ack})

	ok, err := p.WaitForAck(cmdID, 2*time.Second)
	if err != nil || !ok {
		t.Fatalf("ack = %v/%v, want true", ok, err)
	}
}

func TestWaitForAckTimeout(t *testing.T) {
	cli := &fakePaho{}
	p := newTestClient(cli)

	cmdID, err := p.SendDispatch(testOrder())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	ok, err := p.WaitForAck(cmdID, 10*time.Millisecond)
	if ok {
		t.Errorf("expected timeout")
	}
	if !errors.Is(err, coremqtt.ErrAckTimeout) {
		t.Errorf("err = %v, want ErrAckTimeout", err)
	}
}

func TestWaitForAckUnknownCommand(t *testing.T) {
	p := newTestClient(&fakePaho{})
	if _, err := p.WaitForAck("ghost", time.Millisecond); err == nil {
		t.Errorf("unknown command must fail")
	}
}

func TestNewClientOptions(t *testing.T) {
	cfg := Config{
		Broker:     "tcp://localhost:1883",
		ClientID:   "dispatcher",
		Username:   "user",
		Password:   "pass",
		LWTTopic:   "dispatch/lwt",
		LWTPayload: "offline",
		LWTRetain:  true,
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.ClientID != "dispatcher" {
		t.Errorf("client id = %s", opts.ClientID)
	}
	if opts.Username != "user" || opts.Password != "pass" {
		t.Errorf("credentials not applied")
	}
	if opts.WillTopic != "dispatch/lwt" || !opts.WillRetained {
		t.Errorf("will = %s/%v", opts.WillTopic, opts.WillRetained)
	}
	if !opts.AutoReconnect {
		t.Errorf("auto reconnect must stay on")
	}
}

func TestNewClientOptionsCertAuthSkipsCredentials(t *testing.T) {
	cfg := Config{
		Broker:     "ssl://localhost:8883",
		ClientID:   "dispatcher",
		Username:   "user",
		Password:   "pass",
		AuthMethod: "certificate",
		UseTLS:     true,
		TLSConfig:  &tls.Config{MinVersion: tls.VersionTLS12},
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.Username != "" || opts.Password != "" {
		t.Errorf("certificate auth must not set username/password")
	}
	if opts.TLSConfig == nil {
		t.Errorf("tls config not applied")
	}
}

func TestLoadTLSConfigRequiresPaths(t *testing.T) {
	cfg := Config{UseTLS: true}
	if _, err := cfg.LoadTLSConfig(); err == nil {
		t.Errorf("missing cert paths must fail")
	}
}

func TestMockPublisher(t *testing.T) {
	m := NewMockPublisher()
	m.FailSites["depot_b"] = true

	cmdID, err := m.SendDispatch(testOrder())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	ok, err := m.WaitForAck(cmdID, time.Second)
	if err != nil || !ok {
		t.Errorf("ack = %v/%v, want true", ok, err)
	}

	failing := testOrder()
	failing.SiteID = "depot_b"
	if _, err := m.SendDispatch(failing); err == nil {
		t.Errorf("configured failure site must error")
	}
	if _, err := m.WaitForAck("ghost", time.Second); err == nil {
		t.Errorf("unknown command must fail")
	}
}
