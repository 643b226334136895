// Package remote implements the optional remote tier: an authoritative
// relational store shared by every client.
//
// The tier is modelled as a variant. Tier.Mode reports whether an Adapter is
// present, and consumers branch on it instead of nil-checking a handle.
//
// PostgresAdapter talks to PostgreSQL through database/sql and the pgx
// stdlib driver. Every call runs under its own timeout. Failures wrap
// common.ErrRemote; connectivity, authentication and timeout failures also
// wrap common.ErrRemoteUnavailable.
package remote
