// Package llms provides the provider-neutral types used to talk to chat
// models: messages and their parts, tool definitions, tool calls and the
// call options passed to a Model.
//
// Provider implementations live in subpackages, for example
// `pkg/llms/openai` for OpenAI-compatible chat completion endpoints.
package llms
