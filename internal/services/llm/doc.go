// Package llm provides an OpenAI-compatible chat completion client.
//
// The label generation stage uses Complete to request a JSON array of labels
// for a transcript. HealthCheck forces a JSON object response and is what the
// doctor command uses to verify the API key and model.
//
// # Retry Behaviour
//
// Requests go through the shared policy in services/retry: HTTP 408/429/5xx,
// network timeouts, and empty completions are retried with exponential backoff
// (base 1s, max 10s, up to 5 attempts by default). Context cancellation aborts
// retries immediately.
//
// # Response Helpers
//
// StripCodeFence and DecodeLLMJSON tolerate markdown fences and chatter around
// the JSON payload; SummarizeSnippet produces bounded excerpts for errors.
package llm
