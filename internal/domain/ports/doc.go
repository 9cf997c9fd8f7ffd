// Package ports defines the interfaces (ports) that external adapters must implement.
// Repositories, cache, queue and realtime adapters live in infrastructure and are
// swapped for testify mocks in service tests.
package ports
