// Package model defines the LLM inference abstraction consumed by the memory
// pipeline. The pipeline owns prompt construction and response-path
// extraction; a Model is a pure request/response call. Provider adapters live
// in the anthropic and openai subpackages.
package model
