// Package events defines the typed event contract produced while decoding a
// streamed chat response and while playing back its speech.
//
// Every event embeds [Base] and is identified by its [Kind]. Consumers switch
// on the concrete type; [Unrecognized] carries frames of unknown shape so that
// new server event types never break decoding.
//
// Semantics used across the package:
//
//   - Delta: append-only text piece emitted in stream order.
//   - Started/Ended: lifecycle boundary of a region or a call.
//   - Progress: point-in-time fraction that can change over time.
//
// content events
//
//   - ContentDelta (content.delta): visible, speakable response text.
//
// reasoning events
//
//   - ReasoningStarted (reasoning.start): a reasoning region opened.
//   - ReasoningDelta (reasoning.delta): hidden deliberation text.
//   - ReasoningEnded (reasoning.end): the reasoning region closed.
//
// tool_call events
//
//   - ToolCallStarted (tool_call.start): tool execution started.
//   - ToolCallArguments (tool_call.arguments): arguments of the started call.
//   - ToolCallSucceeded (tool_call.success): tool execution completed.
//   - ToolCallFailed (tool_call.failure): tool execution failed.
//
// progress events
//
//   - PromptProcessingProgress (prompt_processing.progress): prompt
//     processing fraction.
//   - ModelLoadProgress (model_load.progress): model load fraction.
//
// response events
//
//   - ResponseIDCaptured (response.id): continuation id seen on a frame.
//   - ChatEnded (chat.end): terminal event, may carry a continuation id.
//   - StreamError (error): error reported inside the stream.
//   - Unrecognized (unrecognized): frame of unknown shape.
//
// playback events
//
//   - PlaybackStatus (playback.status): loading, playing or idle.
package events
