// Package resource implements the small catalog the auth service manages
// alongside sessions: locations, user statuses and named actions, plus the
// append-only user activity log that performed actions write to.
//
// Catalog entries are soft-deleted. Deleted entries keep their row for audit
// but stop resolving by name, and their name becomes free for reuse.
package resource
