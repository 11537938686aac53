// Package agui maps codison agent events onto the AG-UI protocol.
//
// AG-UI (Agent-User Interface) is an event-based protocol connecting agents
// to user-facing applications. A [Mapper] follows a thread's runs and emits
// the protocol's start, content and end events:
//
//	mapper := agui.NewMapper(threadID)
//	for e := range sub.Events() {
//	    for _, ev := range mapper.Map(e) {
//	        writeEvent(ev)
//	    }
//	}
//
// # Event Mapping
//
//   - first event of a run → RUN_STARTED
//   - new step → STEP_FINISHED for the previous step, STEP_STARTED
//   - PartialText → TEXT_MESSAGE_START (on first delta), TEXT_MESSAGE_CONTENT
//   - FullText → TEXT_MESSAGE_END
//   - ToolCall → TOOL_CALL_START, TOOL_CALL_ARGS, TOOL_CALL_END
//   - ToolCallOutput → TOOL_CALL_RESULT
//   - Done → RUN_FINISHED, Error → RUN_ERROR
//
// [FromMessages] converts history for MESSAGES_SNAPSHOT events and
// [RunAgentInput] decodes the protocol's request body.
package agui
