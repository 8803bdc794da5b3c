// Autonomy is a bounded-autonomy control plane for agent engines.
//
// It sits between autonomous engines (trading, content, build, deploy) and
// the outside world, deciding per proposed action whether to execute it
// automatically, queue it for human approval, escalate it, or reject it.
// Every transition is written to a hash-chained audit log.
//
// Usage:
//
//	# Start the control plane with default configuration
//	autonomy run
//
//	# Start with custom configuration file
//	autonomy run --config /path/to/config.yaml
//
//	# Show version information
//	autonomy version
//
//	# Validate a configuration file
//	autonomy validate --config config.yaml
//
//	# Verify the audit hash chain
//	autonomy audit verify
//
//	# Export audit entries
//	autonomy audit export --format csv --output audit.csv
//
//	# Show approval queue statistics
//	autonomy queue stats
package main

func main() {
	Execute()
}
