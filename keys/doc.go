// Package keys provides the signing primitives and key helpers used to author
// and check MPID envelopes.
//
// Stable:
//   - SecretKey/PublicKey, the ed25519 and dilithium3 implementations, the
//     "<alg>:<base64>" public key text form and AccountName.
//
// Experimental:
//   - Filesystem-backed key storage (KeyStore). It is a local convenience for
//     the CLI and not part of the envelope format.
package keys
