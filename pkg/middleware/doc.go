// Package middleware provides the HTTP middleware that feeds the request
// governor.
//
// # Middleware ordering requirements
//
// Governance middleware has strict ordering dependencies. Incorrect order
// causes authorization to run without an identity and reject every request.
//
// REQUIRED ORDERING (outer to inner):
//  1. AuthMiddleware - validates the bearer token and resolves
//     (userID, tier) into the request context
//  2. GovernMiddleware - authorizes against the quota ledger and credential
//     pool, then commits usage after the wrapped handler runs
//
// Example:
//
//	governed := authMW.Handler(governMW.Handler(upstreamHandler))
//	router.Handle("/v1/generate", governed).Methods("POST")
//
// GovernMiddleware rejects the request before any upstream work when quota
// is exhausted (429) or no credential is available (503), and sets the
// X-Quota-Remaining header on allowed requests.
package middleware
