// Package syncer reconciles a cached collection with its remote source of
// truth. Reconcile is the pure merge; Coordinator runs full passes with
// single-flight de-duplication and a cooldown between passes.
package syncer
