// Package storage provides the origin-scoped key/value stores shared between
// the primary and secondary verification contexts.
//
// A Store holds string values under string keys and can notify watchers when
// an entry changes. Three backends are available:
//
//   - MemoryStore keeps entries in process memory. It backs the
//     context-scoped pending request and is used in tests.
//   - FileStore keeps one file per key in a directory and reports changes
//     through fsnotify, so separate processes on one machine share entries.
//   - RedisStore keeps entries in Redis under a key prefix and publishes
//     change events on a pub/sub channel.
//
// Notifications are best-effort. A watcher that falls behind loses events;
// callers that must not miss an entry also poll with Get.
package storage
