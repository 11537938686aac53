// Package anthropic implements codison.Provider on the Anthropic Messages
// API.
//
// Text deltas are forwarded as they arrive. Each tool_use block is bracketed
// by ToolStart and ToolEnd events and reported as a ToolCall with its parsed
// input when the block stops. The turn's full text follows when the message
// ends.
package anthropic
