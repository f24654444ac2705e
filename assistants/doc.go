// Package assistants provides the tool-augmented request/response loop of an
// agent: the system persona and the user input are sent to the model together
// with the tool definitions, the tool calls requested by the model are
// executed in order and their results are fed back until the model replies
// with a final text.
package assistants
