// Package auth implements the credential lifecycle for a multi-tenant API:
// password login with brute-force lockout, JWT issuance with role and claim
// embedding, refresh token rotation, and revocation.
//
// Lockout:
//   - Accounts carry a failure counter and a blocked-until timestamp. The
//     pure policy functions in lockout.go decide block and unblock
//     transitions; the Auther applies them and persists the outcome as one
//     atomic unit with the attempt itself.
//
// Tokens:
//   - Access tokens are HS256 JWTs with a pinned algorithm check on every
//     verification path. Refresh tokens are opaque 256-bit random secrets,
//     rotated on each use because issuing overwrites the stored copy.
//   - VerifyExpired checks signature and algorithm but ignores expiry; it
//     exists only so the refresh flow can read identity out of an access
//     token that already lapsed.
//
// Persistence:
//   - The core talks to a narrow CredentialStore contract. The bundled bun
//     implementation serializes writes per account with a version column so
//     parallel login attempts cannot under-count toward the lockout
//     threshold.
package auth
