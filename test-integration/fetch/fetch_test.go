package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/vellankikoti/tool-versions/cmd/fetch-tool-versions/app"
	"github.com/vellankikoti/tool-versions/test-integration/fetch/helpers"
)

func runFetch(configPath string, extraArgs ...string) (string, error) {
	var out bytes.Buffer
	cmd := app.NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(GinkgoWriter)
	cmd.SetArgs(append([]string{"--config", configPath}, extraArgs...))
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func readDocument(path string) map[string]map[string]any {
	data, err := os.ReadFile(path)
	Expect(err).NotTo(HaveOccurred())
	doc := map[string]map[string]any{}
	Expect(json.Unmarshal(data, &doc)).To(Succeed())
	return doc
}

func published(s string) *string {
	return &s
}

var _ = Describe("Fetch Run", Label("fetch"), func() {
	var (
		tempDir    string
		outputPath string
		github     *helpers.FakeGitHub
	)

	BeforeEach(func() {
		tempDir = createTempDir("fetch-test-")
		outputPath = filepath.Join(tempDir, "static", "data", "tool-versions.json")
		github = helpers.NewFakeGitHub()
	})

	AfterEach(func() {
		github.Close()
		cleanupTempDir(tempDir)
	})

	Context("with a mixed registry", func() {
		It("should write successful tools and report the rest", func() {
			github.SetRelease("kubernetes/kubernetes", helpers.Release{
				TagName:     "v1.31.0",
				PublishedAt: published("2024-08-13T14:00:00Z"),
				HTMLURL:     "https://github.com/kubernetes/kubernetes/releases/tag/v1.31.0",
			})
			github.SetRelease("hashicorp/terraform", helpers.Release{TagName: "v1.9.5"})

			configPath := helpers.WriteConfigYAML(tempDir, helpers.ConfigOptions{
				Output: outputPath,
				APIURL: github.URL(),
				Tools: []helpers.Tool{
					{ID: "kubernetes", Type: "github-release", Locator: "kubernetes/kubernetes"},
					{ID: "docker", Type: "webpage", Locator: "https://docs.docker.com/engine/release-notes/"},
					{ID: "terraform", Type: "github-release", Locator: "hashicorp/terraform"},
					{ID: "ansible", Type: "github-release", Locator: "ansible/ansible"},
				},
			})

			out, err := runFetch(configPath, "--summary")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("fetched 2, retained 0, failed 1, skipped 1"))

			doc := readDocument(outputPath)
			Expect(doc).To(HaveLen(2))
			Expect(doc["kubernetes"]).To(Equal(map[string]any{
				"version": "v1.31.0",
				"date":    "2024-08-13T14:00:00Z",
				"url":     "https://github.com/kubernetes/kubernetes/releases/tag/v1.31.0",
			}))
			Expect(doc["terraform"]).To(Equal(map[string]any{
				"version": "v1.9.5",
				"date":    nil,
				"url":     nil,
			}))
			Expect(github.Requests("ansible/ansible")).To(Equal(1))
		})

		It("should produce identical bytes for identical upstream answers", func() {
			github.SetRelease("org/a", helpers.Release{TagName: "v1.0.0", HTMLURL: "https://x/a?tab=1&b=2"})
			github.SetRelease("org/b", helpers.Release{TagName: "v2.0.0"})

			configPath := helpers.WriteConfigYAML(tempDir, helpers.ConfigOptions{
				Output: outputPath,
				APIURL: github.URL(),
				Tools: []helpers.Tool{
					{ID: "b", Type: "github-release", Locator: "org/b"},
					{ID: "a", Type: "github-release", Locator: "org/a"},
				},
			})

			_, err := runFetch(configPath)
			Expect(err).NotTo(HaveOccurred())
			first, err := os.ReadFile(outputPath)
			Expect(err).NotTo(HaveOccurred())

			_, err = runFetch(configPath)
			Expect(err).NotTo(HaveOccurred())
			second, err := os.ReadFile(outputPath)
			Expect(err).NotTo(HaveOccurred())

			Expect(second).To(Equal(first))
			Expect(string(first)).To(ContainSubstring(`"https://x/a?tab=1&b=2"`))
		})
	})

	Context("with transient upstream errors", func() {
		It("should retry a 5xx answer", func() {
			github.SetResponses("org/a",
				helpers.Response{Status: http.StatusBadGateway, Body: `{}`},
				helpers.Response{Status: http.StatusOK, Body: `{"tag_name": "v1.0.0"}`},
			)

			configPath := helpers.WriteConfigYAML(tempDir, helpers.ConfigOptions{
				Output:      outputPath,
				APIURL:      github.URL(),
				MaxAttempts: 2,
				Tools:       []helpers.Tool{{ID: "a", Type: "github-release", Locator: "org/a"}},
			})

			_, err := runFetch(configPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(github.Requests("org/a")).To(Equal(2))
			Expect(readDocument(outputPath)).To(HaveKey("a"))
		})

		It("should not retry a 404", func() {
			configPath := helpers.WriteConfigYAML(tempDir, helpers.ConfigOptions{
				Output:      outputPath,
				APIURL:      github.URL(),
				MaxAttempts: 3,
				Tools:       []helpers.Tool{{ID: "a", Type: "github-release", Locator: "org/a"}},
			})

			_, err := runFetch(configPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(github.Requests("org/a")).To(Equal(1))
			Expect(readDocument(outputPath)).To(BeEmpty())
		})
	})

	Context("when a tool fails after a successful run", func() {
		var configFor func(policy string) string

		BeforeEach(func() {
			statusFile := filepath.Join(tempDir, "status.json")
			configFor = func(policy string) string {
				return helpers.WriteConfigYAML(tempDir, helpers.ConfigOptions{
					Output:      outputPath,
					StatusFile:  statusFile,
					OnFailure:   policy,
					APIURL:      github.URL(),
					MaxAttempts: 1,
					Tools: []helpers.Tool{
						{ID: "a", Type: "github-release", Locator: "org/a"},
						{ID: "b", Type: "github-release", Locator: "org/b"},
					},
				})
			}

			github.SetRelease("org/a", helpers.Release{TagName: "v1.0.0"})
			github.SetRelease("org/b", helpers.Release{TagName: "v2.0.0"})
			_, err := runFetch(configFor("keep-previous"))
			Expect(err).NotTo(HaveOccurred())

			github.SetResponses("org/a", helpers.Response{Status: http.StatusInternalServerError, Body: `{}`})
			github.SetRelease("org/b", helpers.Release{TagName: "v2.1.0"})
		})

		It("should keep the previous entry under keep-previous", func() {
			_, err := runFetch(configFor("keep-previous"))
			Expect(err).NotTo(HaveOccurred())

			doc := readDocument(outputPath)
			Expect(doc["a"]["version"]).To(Equal("v1.0.0"))
			Expect(doc["b"]["version"]).To(Equal("v2.1.0"))

			statusData, err := os.ReadFile(filepath.Join(tempDir, "status.json"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(statusData)).To(ContainSubstring(`"phase": "Retained"`))
		})

		It("should omit the entry under drop", func() {
			_, err := runFetch(configFor("drop"))
			Expect(err).NotTo(HaveOccurred())

			doc := readDocument(outputPath)
			Expect(doc).NotTo(HaveKey("a"))
			Expect(doc["b"]["version"]).To(Equal("v2.1.0"))
		})
	})

	Context("with a GitHub token", func() {
		It("should authenticate every request", func() {
			GinkgoT().Setenv("GITHUB_TOKEN", "integration-token")
			github.SetRelease("org/a", helpers.Release{TagName: "v1.0.0"})

			configPath := helpers.WriteConfigYAML(tempDir, helpers.ConfigOptions{
				Output: outputPath,
				APIURL: github.URL(),
				Tools:  []helpers.Tool{{ID: "a", Type: "github-release", Locator: "org/a"}},
			})

			_, err := runFetch(configPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(github.AuthorizationHeaders()).To(ConsistOf("Bearer integration-token"))
		})
	})

	Context("when the output cannot be written", func() {
		It("should fail the run", func() {
			blocker := filepath.Join(tempDir, "blocker")
			Expect(os.WriteFile(blocker, nil, 0600)).To(Succeed())

			configPath := helpers.WriteConfigYAML(tempDir, helpers.ConfigOptions{
				Output: filepath.Join(blocker, "tool-versions.json"),
				APIURL: github.URL(),
				Tools:  []helpers.Tool{{ID: "a", Type: "github-release", Locator: "org/a"}},
			})

			_, err := runFetch(configPath)
			Expect(err).To(HaveOccurred())
		})
	})
})
