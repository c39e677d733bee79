package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nerrad567/aquafeed-core/internal/feeder"
	"github.com/nerrad567/aquafeed-core/internal/infrastructure/logging"
	"github.com/nerrad567/aquafeed-core/internal/infrastructure/mqtt"
)

// scheduleQueueDepth bounds each per-source worker channel. A full lane
// blocks the bus handler for that message, preserving arrival order
// rather than dropping mutations.
const scheduleQueueDepth = 64

// Bus is the device bus surface the engine needs.
// Satisfied by mqtt.Client.
type Bus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Broadcaster fans an event out to every connected session.
// Satisfied by api.Hub. Fire-and-forget: sessions connecting after a
// broadcast do not receive it retroactively.
type Broadcaster interface {
	Broadcast(eventType string, payload []byte)
}

// Store is the reconciled state surface the engine writes to.
// Satisfied by feeder.SQLiteRepository.
type Store interface {
	InsertScheduleIfAbsent(ctx context.Context, entry *feeder.ScheduleEntry) (bool, error)
	DeleteScheduleByTuple(ctx context.Context, source string, hour, minute, portion int) (int64, error)
	AppendControl(ctx context.Context, record *feeder.ControlRecord) error
}

// TelemetrySink receives time-series samples extracted from bus traffic.
// Satisfied by influxdb.Client. Optional.
type TelemetrySink interface {
	WriteFeederMetric(source string, measurement string, value float64)
	WriteFeedEvent(source string, origin string, portion float64)
}

// Deps holds the engine's collaborators.
type Deps struct {
	Bus       Bus
	Hub       Broadcaster
	Store     Store
	Telemetry TelemetrySink // optional, may be nil
	Logger    *logging.Logger
	QoS       byte
}

// Engine relays bus traffic to sessions and session intents to the bus,
// reconciling the state store against what it observes on the bus.
type Engine struct {
	bus       Bus
	hub       Broadcaster
	store     Store
	telemetry TelemetrySink
	logger    *logging.Logger
	qos       byte

	ctx    context.Context
	cancel context.CancelFunc

	// writeCtx outlives ctx so mutations drained during Stop can still
	// reach the store. Cancelled only after the workers exit.
	writeCtx    context.Context
	writeCancel context.CancelFunc

	// workers holds one schedule lane per source, created lazily.
	workers  map[string]chan ScheduleMessage
	workerMu sync.Mutex
	wg       sync.WaitGroup
}

// New creates an engine from its collaborators. Call Start to attach it
// to the bus; HandleBusMessage and HandleIntent work immediately.
func New(deps Deps) *Engine {
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	writeCtx, writeCancel := context.WithCancel(context.Background())
	return &Engine{
		bus:         deps.Bus,
		hub:         deps.Hub,
		store:       deps.Store,
		telemetry:   deps.Telemetry,
		logger:      deps.Logger,
		qos:         deps.QoS,
		ctx:         ctx,
		cancel:      cancel,
		writeCtx:    writeCtx,
		writeCancel: writeCancel,
		workers:     make(map[string]chan ScheduleMessage),
	}
}

// Start subscribes the engine to the three feeder topics.
//
// Subscriptions are restored by the bus client on reconnect; Start only
// needs to run once.
func (e *Engine) Start(ctx context.Context) error {
	topics := []string{mqtt.TopicFeederInfo, mqtt.TopicFeederControl, mqtt.TopicFeederSchedule}

	for _, topic := range topics {
		topic := topic
		err := e.bus.Subscribe(topic, e.qos, func(t string, payload []byte) error {
			// The write context keeps an in-flight store call alive
			// across Stop; rejection of new messages happens inside
			// HandleBusMessage on the stop signal.
			return e.HandleBusMessage(e.writeCtx, t, payload)
		})
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
	}

	e.logger.Info("relay engine started", "topics", len(topics))
	return nil
}

// Stop tears down the per-source workers and detaches the engine.
// In-flight schedule mutations drain; new messages are rejected.
func (e *Engine) Stop() {
	e.cancel()
	e.wg.Wait()
	e.writeCancel()

	e.workerMu.Lock()
	e.workers = make(map[string]chan ScheduleMessage)
	e.workerMu.Unlock()

	e.logger.Info("relay engine stopped")
}

// HandleBusMessage classifies a bus message and applies the relay rules:
// broadcast to all sessions first, then reconcile the store where the
// topic calls for it.
//
// Returns ErrMalformedPayload for undecodable payloads (the caller logs
// and drops; there is no retry). Store failure is not returned: the
// broadcast has already happened and the message is dropped with a log
// entry.
func (e *Engine) HandleBusMessage(ctx context.Context, topic string, payload []byte) error {
	select {
	case <-e.ctx.Done():
		return ErrStopped
	default:
	}

	switch topic {
	case mqtt.TopicFeederInfo:
		return e.handleInfo(payload)
	case mqtt.TopicFeederControl:
		return e.handleControl(ctx, payload)
	case mqtt.TopicFeederSchedule:
		return e.handleSchedule(payload)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
}

// handleInfo relays telemetry verbatim. No persistence; numeric fields
// are mirrored to the telemetry sink when one is wired.
func (e *Engine) handleInfo(payload []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return fmt.Errorf("%w: info: %w", ErrMalformedPayload, err)
	}

	e.hub.Broadcast(EventFeederInfo, payload)

	if e.telemetry != nil {
		source, _ := fields["source"].(string)
		if source != "" {
			for name, value := range fields {
				if v, ok := value.(float64); ok {
					e.telemetry.WriteFeederMetric(source, name, v)
				}
			}
		}
	}
	return nil
}

// handleControl broadcasts the control event and appends it to history.
// Appends are unconditional: control history is never deduplicated.
func (e *Engine) handleControl(ctx context.Context, payload []byte) error {
	var msg ControlMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: control: %w", ErrMalformedPayload, err)
	}

	e.hub.Broadcast(EventFeederControl, payload)

	record := &feeder.ControlRecord{
		Source:  msg.Source,
		Action:  msg.Action,
		Portion: msg.Portion,
	}
	if err := e.store.AppendControl(ctx, record); err != nil {
		// Broadcast already went out; the record is dropped.
		e.logger.Warn("control append failed, record dropped",
			"source", msg.Source,
			"action", msg.Action,
			"error", err,
		)
		return nil
	}

	if e.telemetry != nil && msg.Source != "" {
		origin := "device"
		if msg.Source == ClientSource {
			origin = ClientSource
		}
		e.telemetry.WriteFeedEvent(msg.Source, origin, float64(msg.Portion))
	}
	return nil
}

// handleSchedule broadcasts the mutation and hands it to the source's
// worker lane so same-source mutations apply in bus-arrival order.
func (e *Engine) handleSchedule(payload []byte) error {
	var msg ScheduleMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: schedule: %w", ErrMalformedPayload, err)
	}

	e.hub.Broadcast(EventFeederSchedule, payload)

	switch msg.Action {
	case feeder.ActionAdd, feeder.ActionRemove:
		e.dispatchSchedule(msg)
	default:
		// Unknown actions are relayed but never persisted.
		e.logger.Warn("unknown schedule action, broadcast only",
			"source", msg.Source,
			"action", msg.Action,
		)
	}
	return nil
}

// dispatchSchedule enqueues a mutation onto the per-source lane,
// creating the worker on first use.
func (e *Engine) dispatchSchedule(msg ScheduleMessage) {
	e.workerMu.Lock()
	lane, ok := e.workers[msg.Source]
	if !ok {
		lane = make(chan ScheduleMessage, scheduleQueueDepth)
		e.workers[msg.Source] = lane
		e.wg.Add(1)
		go e.scheduleWorker(lane)
	}
	e.workerMu.Unlock()

	select {
	case lane <- msg:
	case <-e.ctx.Done():
	}
}

// scheduleWorker drains one source's lane until the engine stops.
func (e *Engine) scheduleWorker(lane <-chan ScheduleMessage) {
	defer e.wg.Done()

	for {
		select {
		case msg := <-lane:
			e.applySchedule(msg)
		case <-e.ctx.Done():
			// Drain what is already queued, then exit.
			for {
				select {
				case msg := <-lane:
					e.applySchedule(msg)
				default:
					return
				}
			}
		}
	}
}

// applySchedule reconciles one mutation against the store.
func (e *Engine) applySchedule(msg ScheduleMessage) {
	switch msg.Action {
	case feeder.ActionAdd:
		entry := &feeder.ScheduleEntry{
			Source:  msg.Source,
			Hour:    msg.Hour,
			Minute:  msg.Minute,
			Portion: msg.Portion,
			Action:  feeder.ActionAdd,
		}
		inserted, err := e.store.InsertScheduleIfAbsent(e.writeCtx, entry)
		if err != nil {
			e.logger.Warn("schedule add failed, mutation dropped",
				"tuple", entry.Tuple(),
				"error", err,
			)
			return
		}
		if !inserted {
			e.logger.Debug("schedule add was duplicate tuple", "tuple", entry.Tuple())
		}

	case feeder.ActionRemove:
		removed, err := e.store.DeleteScheduleByTuple(e.writeCtx, msg.Source, msg.Hour, msg.Minute, msg.Portion)
		if err != nil {
			e.logger.Warn("schedule remove failed, mutation dropped",
				"source", msg.Source,
				"error", err,
			)
			return
		}
		if removed == 0 {
			// Expected under racing removals.
			e.logger.Debug("schedule remove matched nothing", "source", msg.Source)
		}
	}
}

// HandleIntent publishes a client intent onto the bus.
//
// Intents never write to the store: persistence happens only when the
// bus echo arrives back through HandleBusMessage, keeping the bus the
// single writer.
func (e *Engine) HandleIntent(kind string, payload []byte) error {
	select {
	case <-e.ctx.Done():
		return ErrStopped
	default:
	}

	switch kind {
	case IntentPlayFeeder:
		var msg ControlMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrMalformedPayload, kind, err)
		}
		return e.publish(mqtt.TopicFeederControl, payload)

	case IntentAddSchedule:
		var msg ScheduleMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrMalformedPayload, kind, err)
		}
		if msg.Action == "" {
			msg.Action = feeder.ActionAdd
		}
		out, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrMalformedPayload, kind, err)
		}
		return e.publish(mqtt.TopicFeederSchedule, out)

	case IntentDeleteSchedule:
		var msg ScheduleMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrMalformedPayload, kind, err)
		}
		// Client-origin removals carry the fixed marker so the bus echo
		// reconciles against the tuple the client created.
		out, err := json.Marshal(ScheduleMessage{
			Source:  ClientSource,
			Action:  feeder.ActionRemove,
			Hour:    msg.Hour,
			Minute:  msg.Minute,
			Portion: msg.Portion,
		})
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrMalformedPayload, kind, err)
		}
		return e.publish(mqtt.TopicFeederSchedule, out)

	default:
		return fmt.Errorf("%w: %s", ErrUnknownIntent, kind)
	}
}

func (e *Engine) publish(topic string, payload []byte) error {
	if err := e.bus.Publish(topic, payload, e.qos, false); err != nil {
		return fmt.Errorf("publishing intent to %s: %w", topic, err)
	}
	return nil
}
