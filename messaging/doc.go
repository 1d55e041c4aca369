// Package messaging defines the message vocabulary routed by the hub: the
// Message struct, type and priority enums, validation rules and a fluent
// builder. Messages are plain data; all delivery semantics live in the hub
// package.
package messaging
