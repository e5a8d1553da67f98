// Package suppression maintains the per-team registry of addresses that must
// never receive mail. Matching is case-insensitive on the lowercase-trimmed
// address; read paths fail open so a registry outage never blocks sending.
package suppression
