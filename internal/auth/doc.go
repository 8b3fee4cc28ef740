// Package auth validates the session tokens issued by the account service.
//
// Tokens are HS256 JWTs carrying the grower's email. They arrive in the
// session cookie (default "_uu") or an Authorization: Bearer header. The
// bridge never issues session tokens itself; GenerateAccessToken exists for
// tests and local tooling.
package auth
