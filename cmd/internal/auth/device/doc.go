// Package device verifies one-time device codes and extracts the stable
// device identifier from them.
//
// A Verifier proves possession of an enrolled second factor. Verification is
// stateless with respect to users: it answers "this code is genuine and came
// from device X", and the identity directory resolves X to its owner.
package device
