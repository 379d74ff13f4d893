// Package core implements the content-addressing engine behind shortblob.
//
// Content is hashed with a configurable algorithm and the lowercase hex digest
// is truncated to a short, fixed-length identifier. Identifiers may collide;
// a later insert of different content under the same identifier replaces the
// earlier one on every tier.
//
// Storage has two tiers:
//   - Memory tier: a lock-striped map from identifier to content, filled on
//     every insert and on every persistent-tier hit. Entries live for the
//     process lifetime.
//   - Persistent tier: an optional [Backend] addressed by [ShardPath]. The
//     filesystem backend nests files as <algorithm>/l<L>/<aa>/<bb>/.../<id>
//     so no directory grows past 256 entries per fan-out level.
//
// A [Store] ties the tiers together. It is safe for concurrent use.
package core
