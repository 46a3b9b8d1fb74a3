// Package nodebanana provides a public façade for loading, editing and
// running image-generation workflows without importing internal packages.
// It re-exports the core types and exposes a Runtime that wires the graph
// store, scheduler, cache and generation backends together.
package nodebanana
