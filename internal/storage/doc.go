// Package storage persists feeder state in SQLite: the authoritative food
// plans, operator settings such as the manual feed quantity, and a log of
// every feed the device reports.
//
// Store satisfies session.Store. FeedRecorder is a session.Listener that
// appends feed_started and feed_ended events to the feed log.
//
// The schema lives in the top-level migrations package; callers run
// database.Migrate before using a Store.
package storage
