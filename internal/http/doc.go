// Package http provides HTTP handlers and middleware for the activity
// scheduler API.
//
// The router exposes the following endpoints:
//   - POST /sessions: issues a session token. Body: {"email","password"}.
//     The token is returned in the body and surfaced via the
//     `X-Session-Token` header and a `session_token` cookie.
//   - DELETE /sessions/current: revokes the current session token and clears
//     the cookie. Returns 204 No Content.
//   - GET /members, POST /members: member directory and administrator
//     controlled account creation.
//   - POST /series: publishes a recurring series (or a standalone occurrence
//     for rule kind "none") and returns the materialized occurrence batch.
//   - POST /series/preview: projects the first occurrences a series input
//     would produce without persisting anything. Incomplete input yields an
//     empty list rather than an error.
//   - GET /series/{id}: returns a series definition.
//   - GET /occurrences: lists occurrences with day/week/month presets or
//     explicit from/to bounds, optional status filter, cancelled rows
//     excluded unless include_cancelled=true. Status is computed per read.
//   - GET /occurrences/{id}, PUT /occurrences/{id}, DELETE /occurrences/{id}:
//     occurrence retrieval and mutation. PUT accepts apply_to_future to edit
//     this and all future occurrences of the series; DELETE accepts
//     ?future=true to end the series at the occurrence. Mutations of
//     occurrences whose start minute has been reached are rejected with 409
//     and error code ALREADY_STARTED.
//   - PUT /reminders, DELETE /reminders/{id}: reminder registration with a
//     5 or 15 minute lead. Registration is idempotent per occurrence and
//     offset.
//   - GET /calendar.ics: iCalendar feed of all published activities.
//
// Request/response DTOs live alongside their respective handlers so tests
// and documentation share the same ground truth.
package http
