// Difyrelay exposes a Dify chat application as an OpenAI-compatible chat
// completions endpoint.
//
// Reasoning blocks that Dify renders as collapsible HTML are rewritten into
// <think>…</think> tags, and each caller session keeps its Dify conversation
// across requests.
//
// Usage:
//
//	# Start the relay
//	difyrelay run --config /etc/difyrelay/config.yaml
//
//	# Configure entirely from the environment
//	DIFYRELAY_UPSTREAM_BASE_URL=https://dify.example.com/v1 \
//	DIFYRELAY_UPSTREAM_API_KEY=app-... difyrelay run --config ""
//
//	# Check a configuration file and print the effective settings
//	difyrelay validate --print --output yaml
//
//	# Show version information
//	difyrelay version
package main

func main() {
	Execute()
}
