// Package websocket provides the chat socket and the lifecycle event stream.
//
// Chat clients connect to /ws and exchange JSON envelopes of the form
// {"event": "<name>", "data": {...}}. Client events are user_message,
// set_mode, new_chat, cancel and ping; the server answers with session,
// ack, ai_response, message, error and pong.
//
// Observers can connect to /api/v1/events/ws?chatid=<id> to receive the
// relay's lifecycle events, optionally filtered by chat id.
package websocket
