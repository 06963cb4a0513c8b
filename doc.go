// Package register provides email based account registration (signup,
// verification codes, profile completion, photo attach) plus credential
// authentication primitives (JWT pairs, refresh, revocation) and the HTTP
// surface to drive them.
//
// Registration lifecycle:
//   - Accounts carry an AuthStatus field that is persisted via Bun. The
//     status only ever advances: new -> code_verified -> done -> photo_done.
//     AccountStateMachine centralizes the transition graph; repeated or
//     backward transitions are idempotent no-ops, skipped stages are errors.
//   - Verification codes are 4 digit secrets with a 5 minute TTL and a
//     single active code per account, enforced by a conditional insert.
//   - Until the profile is complete, issued token pairs carry the
//     registration scope and unlock only the remaining registration steps.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Auther, the
//     command handlers, and the state machine to describe signup, code,
//     login, token, and password reset events. Sinks run best-effort
//     (errors are logged) so you can forward to a database or queue
//     without blocking authentication.
//
// HTTP surface:
//   - HTTPController mounts the JSON API over any go-router backed server.
//     RouteAuthenticator guards bearer routes through the jwtware
//     middleware; RequireCompletedRegistration keeps registration scoped
//     tokens off routes that need a finished account.
package register
