// Package relay implements the engine bridging the MQTT device bus and
// live WebSocket sessions.
//
// # Single-Writer Discipline
//
// The bus is the only writer path into the reconciled state store.
// Client intents never touch the store directly: they are published onto
// the bus, and persistence happens only when the engine observes the
// corresponding bus echo. Device-originated and client-originated
// messages are therefore reconciled identically, and a lost publish
// simply means no state change.
//
// # Ordering
//
// Schedule mutations are serialised per source: each source gets a lazy
// worker goroutine fed by a bounded channel, so an ADD and a REMOVE for
// the same tuple apply in bus-arrival order while distinct sources
// proceed concurrently. Telemetry and control messages do not pass
// through the per-source lane.
//
// # Failure Stance
//
// Broadcasting to sessions always precedes persistence and survives
// store failure: telemetry freshness matters more than durability for
// any single message. Malformed bus payloads are logged and dropped;
// nothing here is fatal to the process.
package relay
