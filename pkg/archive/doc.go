// Package archive stores the payloads handed to the browser so a render can
// be inspected or replayed later with `ssrdata inspect`.
//
// Archiving is best effort. The page handler logs and counts failures but
// never fails a render because of them.
package archive
