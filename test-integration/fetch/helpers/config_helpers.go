package helpers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/onsi/gomega"
)

// Tool is one registry entry of a generated config
type Tool struct {
	ID      string
	Type    string
	Locator string
}

// ConfigOptions are the settings written by WriteConfigYAML
type ConfigOptions struct {
	Output      string
	StatusFile  string
	OnFailure   string
	APIURL      string
	MaxAttempts int
	Tools       []Tool
}

// WriteConfigYAML writes a fetcher configuration into dir and returns its path
func WriteConfigYAML(dir string, opts ConfigOptions) string {
	var b strings.Builder

	fmt.Fprintf(&b, "output: %s\n", opts.Output)
	if opts.StatusFile != "" {
		fmt.Fprintf(&b, "statusFile: %s\n", opts.StatusFile)
	}
	if opts.OnFailure != "" {
		fmt.Fprintf(&b, "onFailure: %s\n", opts.OnFailure)
	}
	fmt.Fprintf(&b, "github:\n  apiURL: %s\n", opts.APIURL)
	if opts.MaxAttempts > 0 {
		fmt.Fprintf(&b, "retry:\n  maxAttempts: %d\n  initialInterval: 10ms\n", opts.MaxAttempts)
	}
	b.WriteString("tools:\n")
	for _, tool := range opts.Tools {
		fmt.Fprintf(&b, "  - id: %s\n    type: %s\n    locator: %s\n", tool.ID, tool.Type, tool.Locator)
	}

	path := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(path, []byte(b.String()), 0600)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return path
}
