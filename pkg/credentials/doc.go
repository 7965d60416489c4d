// Package credentials manages the pool of upstream provider credentials.
//
// The pool owns its credentials for the process lifetime. Credential values
// never appear in logs, errors, or serialized output; only counts are logged.
//
// Rotation uses an atomic cursor (increment mod pool size) so consecutive
// calls cycle through the pool deterministically regardless of clock
// granularity. An empty pool is a configuration condition, not an error:
// Next reports ok=false and callers degrade to "provider unavailable".
package credentials
