// Package registration provides account sign-up for Fiber applications: a
// registration form, a bun backed account store, signed activation tokens and
// the views that tie them together.
//
// Workflows:
//   - OneStepWorkflow creates accounts as active and starts a session for the
//     new account right away.
//   - ActivationWorkflow creates inactive accounts and emails a signed,
//     expiring activation link. Tokens are not stored; they carry the account
//     identifier and issuance time and are verified with the server secret.
//
// Signals:
//   - Signals is an injectable publish/subscribe bus carrying user_registered
//     and user_activated events. Delivery is synchronous and runs inside the
//     triggering request, so subscribers should hand long running or fallible
//     work to a queue instead of doing it inline. A subscriber error fails the
//     request.
//
// Registration gate:
//   - Registration is open while gate.FeatureUsersSignup resolves to true on
//     the configured gate.FeatureGate. A closed gate redirects every GET and
//     POST to the closed page before the form is parsed.
package registration
