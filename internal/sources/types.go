package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrSourceUnavailable covers network failures, timeouts and non-200 responses
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrMalformedResponse is returned when a response cannot be read as a VersionInfo
	ErrMalformedResponse = errors.New("malformed response")

	// ErrUnsupportedSourceType is returned when no adapter handles a source type
	ErrUnsupportedSourceType = errors.New("unsupported source type")

	// ErrInvalidLocator is returned when a locator does not fit the adapter
	ErrInvalidLocator = errors.New("invalid locator")
)

// ErrorKind classifies a fetch error for notices and metrics
type ErrorKind string

// Error kinds reported by Classify
const (
	KindNone                  ErrorKind = ""
	KindSourceUnavailable     ErrorKind = "SourceUnavailable"
	KindMalformedResponse     ErrorKind = "MalformedResponse"
	KindUnsupportedSourceType ErrorKind = "UnsupportedSourceType"
	KindInvalidLocator        ErrorKind = "InvalidLocator"
	KindUnknown               ErrorKind = "Unknown"
)

// Classify maps err to its ErrorKind. Deadline and cancellation errors count
// as SourceUnavailable since they mean the upstream did not answer in time.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrUnsupportedSourceType):
		return KindUnsupportedSourceType
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformedResponse
	case errors.Is(err, ErrInvalidLocator):
		return KindInvalidLocator
	case errors.Is(err, ErrSourceUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return KindSourceUnavailable
	default:
		return KindUnknown
	}
}

// VersionInfo is one tool's latest known release
type VersionInfo struct {
	// Version is the release tag, never empty
	Version string `json:"version"`

	// ReleaseDate is the publication time, nil when the upstream has none
	ReleaseDate *time.Time `json:"date"`

	// URL is the canonical release page, empty when unknown
	URL string `json:"url"`
}

type versionInfoJSON struct {
	Version     string     `json:"version"`
	ReleaseDate *time.Time `json:"date"`
	URL         *string    `json:"url"`
}

// MarshalJSON encodes an empty URL as null
func (v VersionInfo) MarshalJSON() ([]byte, error) {
	out := versionInfoJSON{
		Version:     v.Version,
		ReleaseDate: v.ReleaseDate,
	}
	if v.URL != "" {
		url := v.URL
		out.URL = &url
	}

	// Release URLs are written verbatim; json.Marshal would escape '&'.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON accepts null for date and url
func (v *VersionInfo) UnmarshalJSON(data []byte) error {
	var in versionInfoJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	v.Version = in.Version
	v.ReleaseDate = in.ReleaseDate
	v.URL = ""
	if in.URL != nil {
		v.URL = *in.URL
	}
	return nil
}

// Adapter fetches the latest release of a tool from one kind of upstream.
// Implementations hold no mutable state between calls.
//
//go:generate mockgen -destination=mocks/mock_adapter.go -package=mocks -source=types.go Adapter
type Adapter interface {
	// FetchLatest returns the latest release for locator. Errors wrap
	// ErrSourceUnavailable, ErrMalformedResponse or ErrInvalidLocator.
	FetchLatest(ctx context.Context, locator string) (*VersionInfo, error)

	// Validate checks that locator is usable by this adapter without any I/O
	Validate(locator string) error
}
