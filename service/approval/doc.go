// Package approval orchestrates the inbound API of the engine. Every
// mutation acquires the per-instance (or per-pipeline) lock, loads the
// document, applies the change, saves it with a single write, releases the
// lock and only then publishes notifications.
package approval
