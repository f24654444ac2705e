// Package tools defines the contract of the functions an agent can ask the
// model to invoke: a name, a description, a JSON schema for the arguments and
// a Call method that takes the model generated JSON.
//
// Implementations live in subpackages, `tools/directory` and `tools/websearch`.
package tools
