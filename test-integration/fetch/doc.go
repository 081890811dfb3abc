// Package integration runs fetch-tool-versions end to end against a fake
// GitHub API, covering partial failure, retries and the failure policies.
package integration
