// Package auth provides the bearer token middleware of the command gateway.
//
// The chat front end authenticates with a static token. Only its argon2id hash
// is configured, so the config file does not hold the secret itself.
//
// Usage:
//
//	app.Post(path, auth.New(cfg.Webserver.APITokenHash), handler)
package auth
