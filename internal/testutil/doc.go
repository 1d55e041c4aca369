// Package testutil provides fluent builders for constructing agent records
// and messages in tests. Chain only the parts you need; sensible defaults
// are applied.
package testutil
