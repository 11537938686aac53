// Package google implements codison.Provider on the Gemini API.
//
// Gemini does not always assign ids to function calls. Calls without one
// are reported with an empty CallID and the agent assigns its own.
package google
