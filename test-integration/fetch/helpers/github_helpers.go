// Package helpers provides a fake GitHub API and config builders for the
// integration suite.
package helpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/onsi/gomega"
)

// Release is the subset of a GitHub release the fetcher reads
type Release struct {
	TagName     string  `json:"tag_name"`
	PublishedAt *string `json:"published_at"`
	HTMLURL     string  `json:"html_url,omitempty"`
}

// Response is a canned answer for one repository
type Response struct {
	Status int
	Body   string
}

// FakeGitHub serves /repos/{owner}/{repo}/releases/latest from a table of
// canned responses. Repositories without an entry answer 404.
type FakeGitHub struct {
	server *httptest.Server

	mu        sync.Mutex
	responses map[string][]Response
	requests  map[string]int
	auth      []string
}

// NewFakeGitHub starts a fake GitHub API server
func NewFakeGitHub() *FakeGitHub {
	f := &FakeGitHub{
		responses: make(map[string][]Response),
		requests:  make(map[string]int),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

// URL returns the API base URL
func (f *FakeGitHub) URL() string {
	return f.server.URL
}

// Close stops the server
func (f *FakeGitHub) Close() {
	f.server.Close()
}

// SetRelease makes repo answer with the given release
func (f *FakeGitHub) SetRelease(repo string, release Release) {
	body, err := json.Marshal(release)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	f.SetResponses(repo, Response{Status: http.StatusOK, Body: string(body)})
}

// SetResponses queues answers for repo. The last one repeats once the queue
// is drained.
func (f *FakeGitHub) SetResponses(repo string, responses ...Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[repo] = responses
}

// Requests returns how many times repo was asked for its latest release
func (f *FakeGitHub) Requests(repo string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[repo]
}

// AuthorizationHeaders returns the Authorization header of every request
func (f *FakeGitHub) AuthorizationHeaders() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.auth...)
}

func (f *FakeGitHub) handle(w http.ResponseWriter, r *http.Request) {
	repo, ok := strings.CutPrefix(r.URL.Path, "/repos/")
	if ok {
		repo, ok = strings.CutSuffix(repo, "/releases/latest")
	}
	if !ok {
		http.NotFound(w, r)
		return
	}

	f.mu.Lock()
	f.requests[repo]++
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	queue := f.responses[repo]
	var resp Response
	switch len(queue) {
	case 0:
		resp = Response{Status: http.StatusNotFound, Body: `{"message": "Not Found"}`}
	case 1:
		resp = queue[0]
	default:
		resp = queue[0]
		f.responses[repo] = queue[1:]
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_, _ = fmt.Fprint(w, resp.Body)
}
