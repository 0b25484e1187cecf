// Package llm reads invoice fields out of page images and drafts reply text
// using hosted language models. Anthropic (through the official SDK) and
// OpenAI are supported, with retry, rate limiting and an extraction cache.
package llm
