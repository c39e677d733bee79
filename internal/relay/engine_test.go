package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/aquafeed-core/internal/feeder"
	"github.com/nerrad567/aquafeed-core/internal/infrastructure/mqtt"
)

// =============================================================================
// Fakes
// =============================================================================

// fakeBus records publishes and subscriptions.
type fakeBus struct {
	mu         sync.Mutex
	published  []busMessage
	subscribed map[string]mqtt.MessageHandler
	publishErr error
}

type busMessage struct {
	topic   string
	payload string
}

func newFakeBus() *fakeBus {
	return &fakeBus{subscribed: make(map[string]mqtt.MessageHandler)}
}

func (b *fakeBus) Publish(topic string, payload []byte, _ byte, _ bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return b.publishErr
	}
	b.published = append(b.published, busMessage{topic: topic, payload: string(payload)})
	return nil
}

func (b *fakeBus) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribed[topic] = handler
	return nil
}

func (b *fakeBus) lastPublished(t *testing.T) busMessage {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.published) == 0 {
		t.Fatal("nothing published")
	}
	return b.published[len(b.published)-1]
}

// fakeHub records broadcasts.
type fakeHub struct {
	mu     sync.Mutex
	events []hubEvent
}

type hubEvent struct {
	eventType string
	payload   string
}

func (h *fakeHub) Broadcast(eventType string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, hubEvent{eventType: eventType, payload: string(payload)})
}

func (h *fakeHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func (h *fakeHub) last(t *testing.T) hubEvent {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.events) == 0 {
		t.Fatal("nothing broadcast")
	}
	return h.events[len(h.events)-1]
}

// fakeStore records operations in arrival order and can inject failures.
// It honours context cancellation like the real database-backed store,
// and an optional gate lets a test block a write mid-flight.
type fakeStore struct {
	mu        sync.Mutex
	ops       []string
	schedules map[string]bool // keyed by tuple
	controls  []feeder.ControlRecord
	failAll   bool
	gate      chan struct{} // set before use; writes wait until closed
}

func (s *fakeStore) admit(ctx context.Context) error {
	if s.gate != nil {
		<-s.gate
	}
	return ctx.Err()
}

func newFakeStore() *fakeStore {
	return &fakeStore{schedules: make(map[string]bool)}
}

func tupleKey(source string, hour, minute, portion int) string {
	return fmt.Sprintf("%s/%d/%d/%d", source, hour, minute, portion)
}

func (s *fakeStore) InsertScheduleIfAbsent(ctx context.Context, entry *feeder.ScheduleEntry) (bool, error) {
	if err := s.admit(ctx); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return false, feeder.ErrStoreUnavailable
	}
	key := tupleKey(entry.Source, entry.Hour, entry.Minute, entry.Portion)
	s.ops = append(s.ops, "ADD "+key)
	if s.schedules[key] {
		return false, nil
	}
	s.schedules[key] = true
	return true, nil
}

func (s *fakeStore) DeleteScheduleByTuple(ctx context.Context, source string, hour, minute, portion int) (int64, error) {
	if err := s.admit(ctx); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return 0, feeder.ErrStoreUnavailable
	}
	key := tupleKey(source, hour, minute, portion)
	s.ops = append(s.ops, "REMOVE "+key)
	if !s.schedules[key] {
		return 0, nil
	}
	delete(s.schedules, key)
	return 1, nil
}

func (s *fakeStore) AppendControl(ctx context.Context, record *feeder.ControlRecord) error {
	if err := s.admit(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return feeder.ErrStoreUnavailable
	}
	s.controls = append(s.controls, *record)
	return nil
}

func (s *fakeStore) scheduleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.schedules)
}

func (s *fakeStore) opLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.ops))
	copy(out, s.ops)
	return out
}

// fakeSink records telemetry writes.
type fakeSink struct {
	mu      sync.Mutex
	metrics []string
	events  []string
}

func (s *fakeSink) WriteFeederMetric(source, measurement string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, fmt.Sprintf("%s/%s=%g", source, measurement, value))
}

func (s *fakeSink) WriteFeedEvent(source, origin string, portion float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, fmt.Sprintf("%s/%s/%g", source, origin, portion))
}

// =============================================================================
// Helpers
// =============================================================================

type testEngine struct {
	engine *Engine
	bus    *fakeBus
	hub    *fakeHub
	store  *fakeStore
	sink   *fakeSink
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	te := &testEngine{
		bus:   newFakeBus(),
		hub:   &fakeHub{},
		store: newFakeStore(),
		sink:  &fakeSink{},
	}
	te.engine = New(Deps{
		Bus:       te.bus,
		Hub:       te.hub,
		Store:     te.store,
		Telemetry: te.sink,
		QoS:       1,
	})
	t.Cleanup(te.engine.Stop)
	return te
}

// waitFor polls until the condition holds or the deadline passes.
// Schedule mutations apply asynchronously on per-source workers.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// =============================================================================
// Bus Message Tests
// =============================================================================

func TestHandleBusMessage_InfoBroadcastVerbatim(t *testing.T) {
	te := newTestEngine(t)
	payload := []byte(`{"source":"esp32_1","hopper_level":72.5,"status":"idle"}`)

	err := te.engine.HandleBusMessage(context.Background(), mqtt.TopicFeederInfo, payload)
	if err != nil {
		t.Fatalf("HandleBusMessage() error = %v", err)
	}

	ev := te.hub.last(t)
	if ev.eventType != EventFeederInfo {
		t.Errorf("event type = %q, want %q", ev.eventType, EventFeederInfo)
	}
	if ev.payload != string(payload) {
		t.Errorf("payload = %q, want verbatim %q", ev.payload, payload)
	}

	// Numeric fields mirror to the telemetry sink.
	te.sink.mu.Lock()
	defer te.sink.mu.Unlock()
	if len(te.sink.metrics) != 1 {
		t.Fatalf("metric count = %d, want 1", len(te.sink.metrics))
	}
	if te.sink.metrics[0] != "esp32_1/hopper_level=72.5" {
		t.Errorf("metric = %q, want %q", te.sink.metrics[0], "esp32_1/hopper_level=72.5")
	}
}

func TestHandleBusMessage_ControlBroadcastAndAppend(t *testing.T) {
	te := newTestEngine(t)
	payload := []byte(`{"source":"esp32_1","action":"dispense","portion":5}`)

	err := te.engine.HandleBusMessage(context.Background(), mqtt.TopicFeederControl, payload)
	if err != nil {
		t.Fatalf("HandleBusMessage() error = %v", err)
	}

	ev := te.hub.last(t)
	if ev.eventType != EventFeederControl {
		t.Errorf("event type = %q, want %q", ev.eventType, EventFeederControl)
	}
	if ev.payload != string(payload) {
		t.Errorf("payload = %q, want verbatim %q", ev.payload, payload)
	}

	te.store.mu.Lock()
	defer te.store.mu.Unlock()
	if len(te.store.controls) != 1 {
		t.Fatalf("control count = %d, want 1", len(te.store.controls))
	}
	rec := te.store.controls[0]
	if rec.Source != "esp32_1" || rec.Action != "dispense" || rec.Portion != 5 {
		t.Errorf("control record = %+v", rec)
	}
}

func TestHandleBusMessage_ControlWithoutActionStillAppends(t *testing.T) {
	te := newTestEngine(t)
	payload := []byte(`{"source":"esp32_1","portion":5}`)

	err := te.engine.HandleBusMessage(context.Background(), mqtt.TopicFeederControl, payload)
	if err != nil {
		t.Fatalf("HandleBusMessage() error = %v", err)
	}

	te.store.mu.Lock()
	defer te.store.mu.Unlock()
	if len(te.store.controls) != 1 {
		t.Fatalf("control count = %d, want 1", len(te.store.controls))
	}
	rec := te.store.controls[0]
	if rec.Source != "esp32_1" || rec.Action != "" || rec.Portion != 5 {
		t.Errorf("control record = %+v", rec)
	}
}

func TestHandleBusMessage_ScheduleAddAndRemove(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	add := []byte(`{"source":"esp32_1","action":"ADD","hour":7,"minute":30,"portion":5}`)
	if err := te.engine.HandleBusMessage(ctx, mqtt.TopicFeederSchedule, add); err != nil {
		t.Fatalf("HandleBusMessage(ADD) error = %v", err)
	}
	waitFor(t, func() bool { return te.store.scheduleCount() == 1 })

	remove := []byte(`{"source":"esp32_1","action":"REMOVE","hour":7,"minute":30,"portion":5}`)
	if err := te.engine.HandleBusMessage(ctx, mqtt.TopicFeederSchedule, remove); err != nil {
		t.Fatalf("HandleBusMessage(REMOVE) error = %v", err)
	}
	waitFor(t, func() bool { return te.store.scheduleCount() == 0 })

	if te.hub.count() != 2 {
		t.Errorf("broadcast count = %d, want 2", te.hub.count())
	}
}

func TestHandleBusMessage_RemoveThenAddLeavesEntry(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	// A REMOVE arriving before its ADD is a no-op that must not cancel
	// the later ADD: the tuple ends present.
	remove := []byte(`{"source":"esp32_1","action":"REMOVE","hour":7,"minute":30,"portion":5}`)
	add := []byte(`{"source":"esp32_1","action":"ADD","hour":7,"minute":30,"portion":5}`)
	if err := te.engine.HandleBusMessage(ctx, mqtt.TopicFeederSchedule, remove); err != nil {
		t.Fatalf("HandleBusMessage(REMOVE) error = %v", err)
	}
	if err := te.engine.HandleBusMessage(ctx, mqtt.TopicFeederSchedule, add); err != nil {
		t.Fatalf("HandleBusMessage(ADD) error = %v", err)
	}

	waitFor(t, func() bool { return len(te.store.opLog()) == 2 })

	ops := te.store.opLog()
	if ops[0] != "REMOVE esp32_1/7/30/5" || ops[1] != "ADD esp32_1/7/30/5" {
		t.Fatalf("ops = %v, want REMOVE then ADD", ops)
	}
	if te.store.scheduleCount() != 1 {
		t.Errorf("schedule count = %d, want 1", te.store.scheduleCount())
	}
}

func TestHandleBusMessage_PerSourceOrdering(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	// Alternating ADD/REMOVE for the same tuple must apply in arrival
	// order: the set ends empty, never with a stranded entry.
	const rounds = 20
	for i := 0; i < rounds; i++ {
		add := []byte(`{"source":"esp32_1","action":"ADD","hour":7,"minute":30,"portion":5}`)
		remove := []byte(`{"source":"esp32_1","action":"REMOVE","hour":7,"minute":30,"portion":5}`)
		if err := te.engine.HandleBusMessage(ctx, mqtt.TopicFeederSchedule, add); err != nil {
			t.Fatalf("HandleBusMessage(ADD) error = %v", err)
		}
		if err := te.engine.HandleBusMessage(ctx, mqtt.TopicFeederSchedule, remove); err != nil {
			t.Fatalf("HandleBusMessage(REMOVE) error = %v", err)
		}
	}

	waitFor(t, func() bool { return len(te.store.opLog()) == rounds*2 })

	ops := te.store.opLog()
	for i, op := range ops {
		want := "ADD esp32_1/7/30/5"
		if i%2 == 1 {
			want = "REMOVE esp32_1/7/30/5"
		}
		if op != want {
			t.Fatalf("ops[%d] = %q, want %q", i, op, want)
		}
	}
	if te.store.scheduleCount() != 0 {
		t.Errorf("schedule count = %d, want 0", te.store.scheduleCount())
	}
}

func TestHandleBusMessage_UnknownScheduleActionBroadcastOnly(t *testing.T) {
	te := newTestEngine(t)
	payload := []byte(`{"source":"esp32_1","action":"PAUSE","hour":7,"minute":30,"portion":5}`)

	err := te.engine.HandleBusMessage(context.Background(), mqtt.TopicFeederSchedule, payload)
	if err != nil {
		t.Fatalf("HandleBusMessage() error = %v", err)
	}

	if te.hub.count() != 1 {
		t.Errorf("broadcast count = %d, want 1", te.hub.count())
	}

	// No store mutation may happen for unknown actions.
	time.Sleep(50 * time.Millisecond)
	if ops := te.store.opLog(); len(ops) != 0 {
		t.Errorf("store ops = %v, want none", ops)
	}
}

func TestHandleBusMessage_MalformedPayloadIsolation(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	for _, topic := range []string{mqtt.TopicFeederInfo, mqtt.TopicFeederControl, mqtt.TopicFeederSchedule} {
		err := te.engine.HandleBusMessage(ctx, topic, []byte(`{not json`))
		if !errors.Is(err, ErrMalformedPayload) {
			t.Errorf("HandleBusMessage(%s) error = %v, want ErrMalformedPayload", topic, err)
		}
	}

	// Nothing broadcast or persisted for malformed messages.
	if te.hub.count() != 0 {
		t.Errorf("broadcast count = %d, want 0", te.hub.count())
	}

	// The next valid message on the same topic still processes.
	valid := []byte(`{"source":"esp32_1","action":"dispense","portion":5}`)
	if err := te.engine.HandleBusMessage(ctx, mqtt.TopicFeederControl, valid); err != nil {
		t.Fatalf("HandleBusMessage() after malformed error = %v", err)
	}
	if te.hub.count() != 1 {
		t.Errorf("broadcast count = %d, want 1", te.hub.count())
	}
}

func TestHandleBusMessage_StoreFailureStillBroadcasts(t *testing.T) {
	te := newTestEngine(t)
	te.store.failAll = true

	payload := []byte(`{"source":"esp32_1","action":"dispense","portion":5}`)
	err := te.engine.HandleBusMessage(context.Background(), mqtt.TopicFeederControl, payload)
	if err != nil {
		t.Fatalf("HandleBusMessage() error = %v, want nil despite store failure", err)
	}

	ev := te.hub.last(t)
	if ev.eventType != EventFeederControl {
		t.Errorf("event type = %q, want %q", ev.eventType, EventFeederControl)
	}
	if ev.payload != string(payload) {
		t.Errorf("payload = %q, want verbatim %q", ev.payload, payload)
	}
}

func TestHandleBusMessage_UnknownTopic(t *testing.T) {
	te := newTestEngine(t)

	err := te.engine.HandleBusMessage(context.Background(), "feeder/bogus", []byte(`{}`))
	if !errors.Is(err, ErrUnknownTopic) {
		t.Errorf("HandleBusMessage() error = %v, want ErrUnknownTopic", err)
	}
}

// =============================================================================
// Intent Tests
// =============================================================================

func TestHandleIntent_PlayFeederPublishesVerbatim(t *testing.T) {
	te := newTestEngine(t)
	payload := []byte(`{"source":"esp32_1","action":"dispense","portion":3}`)

	if err := te.engine.HandleIntent(IntentPlayFeeder, payload); err != nil {
		t.Fatalf("HandleIntent() error = %v", err)
	}

	msg := te.bus.lastPublished(t)
	if msg.topic != mqtt.TopicFeederControl {
		t.Errorf("topic = %q, want %q", msg.topic, mqtt.TopicFeederControl)
	}
	if msg.payload != string(payload) {
		t.Errorf("payload = %q, want verbatim %q", msg.payload, payload)
	}

	// No store write: persistence happens only on the bus echo.
	if ops := te.store.opLog(); len(ops) != 0 {
		t.Errorf("store ops = %v, want none", ops)
	}
	te.store.mu.Lock()
	defer te.store.mu.Unlock()
	if len(te.store.controls) != 0 {
		t.Errorf("control count = %d, want 0", len(te.store.controls))
	}
}

func TestHandleIntent_AddSchedulePublishesAdd(t *testing.T) {
	te := newTestEngine(t)
	payload := []byte(`{"source":"App","hour":7,"minute":30,"portion":5}`)

	if err := te.engine.HandleIntent(IntentAddSchedule, payload); err != nil {
		t.Fatalf("HandleIntent() error = %v", err)
	}

	msg := te.bus.lastPublished(t)
	if msg.topic != mqtt.TopicFeederSchedule {
		t.Errorf("topic = %q, want %q", msg.topic, mqtt.TopicFeederSchedule)
	}

	var out ScheduleMessage
	if err := json.Unmarshal([]byte(msg.payload), &out); err != nil {
		t.Fatalf("published payload is not valid JSON: %v", err)
	}
	want := ScheduleMessage{Source: "App", Action: feeder.ActionAdd, Hour: 7, Minute: 30, Portion: 5}
	if out != want {
		t.Errorf("published = %+v, want %+v", out, want)
	}
}

func TestHandleIntent_DeleteSchedulePublishesRemoveWithClientSource(t *testing.T) {
	te := newTestEngine(t)
	payload := []byte(`{"source":"anything","hour":7,"minute":30,"portion":5}`)

	if err := te.engine.HandleIntent(IntentDeleteSchedule, payload); err != nil {
		t.Fatalf("HandleIntent() error = %v", err)
	}

	msg := te.bus.lastPublished(t)
	if msg.topic != mqtt.TopicFeederSchedule {
		t.Errorf("topic = %q, want %q", msg.topic, mqtt.TopicFeederSchedule)
	}

	var out ScheduleMessage
	if err := json.Unmarshal([]byte(msg.payload), &out); err != nil {
		t.Fatalf("published payload is not valid JSON: %v", err)
	}
	want := ScheduleMessage{Source: ClientSource, Action: feeder.ActionRemove, Hour: 7, Minute: 30, Portion: 5}
	if out != want {
		t.Errorf("published = %+v, want %+v", out, want)
	}
}

func TestHandleIntent_Unknown(t *testing.T) {
	te := newTestEngine(t)

	err := te.engine.HandleIntent("selfDestruct", []byte(`{}`))
	if !errors.Is(err, ErrUnknownIntent) {
		t.Errorf("HandleIntent() error = %v, want ErrUnknownIntent", err)
	}
}

func TestHandleIntent_Malformed(t *testing.T) {
	te := newTestEngine(t)

	for _, kind := range []string{IntentPlayFeeder, IntentAddSchedule, IntentDeleteSchedule} {
		err := te.engine.HandleIntent(kind, []byte(`{not json`))
		if !errors.Is(err, ErrMalformedPayload) {
			t.Errorf("HandleIntent(%s) error = %v, want ErrMalformedPayload", kind, err)
		}
	}

	te.bus.mu.Lock()
	defer te.bus.mu.Unlock()
	if len(te.bus.published) != 0 {
		t.Errorf("published count = %d, want 0", len(te.bus.published))
	}
}

func TestHandleIntent_PublishFailurePropagates(t *testing.T) {
	te := newTestEngine(t)
	te.bus.publishErr = mqtt.ErrNotConnected

	err := te.engine.HandleIntent(IntentPlayFeeder, []byte(`{"source":"esp32_1","action":"dispense","portion":3}`))
	if !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("HandleIntent() error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestStart_SubscribesFeederTopics(t *testing.T) {
	te := newTestEngine(t)

	if err := te.engine.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	te.bus.mu.Lock()
	defer te.bus.mu.Unlock()
	for _, topic := range []string{mqtt.TopicFeederInfo, mqtt.TopicFeederControl, mqtt.TopicFeederSchedule} {
		if _, ok := te.bus.subscribed[topic]; !ok {
			t.Errorf("not subscribed to %s", topic)
		}
	}
}

func TestStop_RejectsNewMessages(t *testing.T) {
	te := newTestEngine(t)
	te.engine.Stop()

	err := te.engine.HandleBusMessage(context.Background(), mqtt.TopicFeederInfo, []byte(`{}`))
	if !errors.Is(err, ErrStopped) {
		t.Errorf("HandleBusMessage() after Stop error = %v, want ErrStopped", err)
	}

	err = te.engine.HandleIntent(IntentPlayFeeder, []byte(`{}`))
	if !errors.Is(err, ErrStopped) {
		t.Errorf("HandleIntent() after Stop error = %v, want ErrStopped", err)
	}
}

func TestStop_DrainsQueuedMutations(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	add := []byte(`{"source":"esp32_1","action":"ADD","hour":7,"minute":30,"portion":5}`)
	if err := te.engine.HandleBusMessage(ctx, mqtt.TopicFeederSchedule, add); err != nil {
		t.Fatalf("HandleBusMessage() error = %v", err)
	}

	te.engine.Stop()

	if te.store.scheduleCount() != 1 {
		t.Errorf("schedule count after Stop = %d, want 1 (queued mutation drained)", te.store.scheduleCount())
	}
}

func TestStop_DrainedWritesOutliveCancellation(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	gate := make(chan struct{})
	te.store.gate = gate

	// First mutation blocks its worker inside the store call; the second
	// queues behind it on the same lane.
	first := []byte(`{"source":"esp32_1","action":"ADD","hour":7,"minute":30,"portion":5}`)
	second := []byte(`{"source":"esp32_1","action":"ADD","hour":18,"minute":0,"portion":3}`)
	if err := te.engine.HandleBusMessage(ctx, mqtt.TopicFeederSchedule, first); err != nil {
		t.Fatalf("HandleBusMessage() error = %v", err)
	}
	if err := te.engine.HandleBusMessage(ctx, mqtt.TopicFeederSchedule, second); err != nil {
		t.Fatalf("HandleBusMessage() error = %v", err)
	}

	stopped := make(chan struct{})
	go func() {
		te.engine.Stop()
		close(stopped)
	}()

	// Let Stop cancel before the worker is released, then both writes
	// must still land: the store context is cancelled only after drain.
	time.Sleep(20 * time.Millisecond)
	close(gate)
	<-stopped

	if te.store.scheduleCount() != 2 {
		t.Errorf("schedule count after Stop = %d, want 2 (blocked and queued writes both persisted)", te.store.scheduleCount())
	}
}
