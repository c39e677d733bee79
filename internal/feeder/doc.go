// Package feeder contains the feeder domain types and the reconciled
// state store.
//
// # Reconciliation Model
//
// The MQTT bus is the single source of truth: the store persists what it
// observes on the bus, never what clients ask for. Two record families
// exist with deliberately different semantics:
//
//   - Schedules are a reconciled set. The natural key is the full tuple
//     (source, hour, minute, portion); there is no separate identity.
//     ADD inserts the tuple if absent (idempotent under redelivery),
//     REMOVE deletes the matching tuple if present (no-op if absent).
//     A UNIQUE constraint in the schema enforces the no-duplicates
//     invariant independently of any caller-level serialisation.
//
//   - Controls are append-only history. Every control event observed on
//     the bus becomes a new record; nothing is deduplicated.
//
// # Usage
//
//	repo := feeder.NewSQLiteRepository(db.DB)
//	inserted, err := repo.InsertScheduleIfAbsent(ctx, &feeder.ScheduleEntry{
//	    Source: "feeder-pond-01", Hour: 7, Minute: 30, Portion: 5,
//	})
package feeder
