package httpclient_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vellankikoti/tool-versions/internal/httpclient"
)

func TestHTTPError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		statusCode    int
		url           string
		message       string
		expectedError string
		temporary     bool
	}{
		{
			name:          "404 is not temporary",
			statusCode:    404,
			url:           "https://api.github.com/repos/org/a/releases/latest",
			message:       "404 Not Found",
			expectedError: "HTTP 404 for URL https://api.github.com/repos/org/a/releases/latest: 404 Not Found",
		},
		{
			name:          "500 is temporary",
			statusCode:    500,
			url:           "http://api.example.com/v1/data",
			message:       "Internal Server Error",
			expectedError: "HTTP 500 for URL http://api.example.com/v1/data: Internal Server Error",
			temporary:     true,
		},
		{
			name:          "503 is temporary",
			statusCode:    503,
			url:           "http://example.com",
			message:       "Service Unavailable",
			expectedError: "HTTP 503 for URL http://example.com: Service Unavailable",
			temporary:     true,
		},
		{
			name:          "429 is not temporary",
			statusCode:    429,
			url:           "http://example.com",
			message:       "Too Many Requests",
			expectedError: "HTTP 429 for URL http://example.com: Too Many Requests",
		},
		{
			name:          "handle empty message",
			statusCode:    404,
			url:           "http://example.com",
			message:       "",
			expectedError: "HTTP 404 for URL http://example.com: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := httpclient.NewHTTPError(tt.statusCode, tt.url, tt.message)
			require.Error(t, err)
			assert.Equal(t, tt.expectedError, err.Error())

			var httpErr *httpclient.HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.temporary, httpErr.Temporary())
		})
	}
}

func TestStatusCode(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("fetch failed: %w", httpclient.NewHTTPError(502, "http://example.com", "Bad Gateway"))
	assert.Equal(t, 502, httpclient.StatusCode(wrapped))
	assert.Equal(t, 0, httpclient.StatusCode(errors.New("boom")))
	assert.Equal(t, 0, httpclient.StatusCode(nil))
}
