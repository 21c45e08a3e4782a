// Package registry provides a user registration and authentication backend:
// bcrypt credential hashing, JWT session issuance, a Bun backed user store,
// and the password reset token lifecycle.
//
// Accounts:
//   - Users carry a role (admin, clinician, participant, import) persisted via
//     Bun. An account whose username equals its lowercased email is in the
//     derived-username state: the username tracks the email and cannot be
//     changed directly. Import accounts hold placeholder records and can never
//     authenticate.
//
// Credentials:
//   - Passwords are hashed explicitly with bcrypt before persistence; the
//     store never sees plaintext. Authentication resolves an identifier with
//     an exact username probe first, then a lowered-email fallback that only
//     matches derived-username accounts.
//
// Password reset:
//   - Issuing a reset token rotates the stored credential immediately: the old
//     password stops working the moment the token exists. Tokens are single
//     use, expire after ResetExpiration, and are delivered through an outbound
//     webhook. Redemption installs the user supplied password and clears the
//     token in one transaction.
package registry
