// Package cli provides the clubsync command-line client.
//
// Every command opens the local cache and the configured remote, performs
// one operation through the collection managers and closes everything
// again. Flags override the JSON config file and CLUBSYNC_* variables.
//
// Commands:
//   - collections: list the known collections
//   - list / get: read records (cached, revalidated in the background)
//   - add / update / delete: write through to the remote with offline fallback
//   - sync: force a reconcile pass
//   - watch: print the collection every time it changes
package cli
