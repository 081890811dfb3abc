// Package sources provides the adapters that resolve the latest released
// version of a tracked tool from its upstream.
//
// Architecture:
//   - Adapter: fetches a VersionInfo for a locator and validates locators
//   - Registry: looks up the Adapter registered for a config.SourceType
//   - VersionInfo: one tool's latest release (version, date, url)
//
// Current implementations:
//   - GitHubReleaseAdapter: reads /repos/{owner}/{repo}/releases/latest from
//     the GitHub REST API
//
// The webpage source type is declared in config but has no adapter yet.
// Registry.Lookup reports it with ErrUnsupportedSourceType, which callers
// treat as a benign skip rather than a fetch failure.
//
// Errors returned by adapters wrap one of ErrSourceUnavailable or
// ErrMalformedResponse; Classify maps any error to an ErrorKind.
package sources
