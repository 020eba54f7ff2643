// Package notifications delivers download events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when notifications are disabled. Event
// types cover finished downloads, failures and queue milestones so callers
// emit consistent messages without duplicating HTTP glue.
package notifications
