// Package scribe is the composition root of the Scribe note session engine.
//
// It connects the session controller, the optimistic note cache and the
// validating note service with a storage adapter chosen by URI.
//
// Features:
//
//   - **Debounced autosave**: document edits are saved after a quiet period;
//     a manual save (Ctrl+S) pre-empts the timer.
//   - **Safe note switching**: pending timers, dirty flags and load-time
//     notifications never leak from one note into the next.
//   - **Optimistic cache**: list entries are updated before the repository
//     confirms and restored exactly on failure.
//   - **Adapters**: SQLite (default), a remote HTTP API and an in-memory store.
//
// Usage:
//
//	eng, err := scribe.New("./scribe.db",
//		scribe.WithDebounce(2*time.Second),
//		scribe.WithLogger(logger),
//	)
//
//	note, err := eng.OpenNote(ctx, 1)
//	_, err = eng.Session.HandleKey(ctx, "ctrl+s")
package scribe
