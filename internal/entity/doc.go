// Package entity describes the records managed by the sync engine.
//
// A Record is a loosely typed field map as it travels between the remote
// source of truth and the on-device cache. A Schema carries the per-collection
// metadata (identity fields, status fields, owned sub-collections and asset
// fields) that lets a single generic engine manage every collection.
package entity
