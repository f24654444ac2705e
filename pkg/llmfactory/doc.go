// Package llmfactory creates the chat model from the LLM configuration.
package llmfactory
