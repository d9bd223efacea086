// Package graph is exercised exclusively by internal/analyzer; nothing
// outside that single-writer goroutine should import it directly in
// production code (tests excepted).
package graph
