package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/vellankikoti/tool-versions/internal/config"
	"github.com/vellankikoti/tool-versions/internal/document"
	"github.com/vellankikoti/tool-versions/internal/httpclient"
	"github.com/vellankikoti/tool-versions/internal/logging"
	"github.com/vellankikoti/tool-versions/internal/sources"
	"github.com/vellankikoti/tool-versions/internal/status"
	"github.com/vellankikoti/tool-versions/internal/sync"
	"github.com/vellankikoti/tool-versions/internal/telemetry"
	"github.com/vellankikoti/tool-versions/pkg/versions"
)

const (
	tracerName = "github.com/vellankikoti/tool-versions"

	telemetryShutdownTimeout = 5 * time.Second
)

type fetchOptions struct {
	configPath string
	output     string
	summary    bool
}

func runFetch(cmd *cobra.Command, opts *fetchOptions) error {
	ctx := cmd.Context()
	logger := logging.FromContext(ctx)

	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Info("Loaded configuration",
		"config", opts.configPath,
		"tools", len(cfg.Sources),
		"output", cfg.Output,
		"on_failure", cfg.OnFailure)

	tel, err := telemetry.New(ctx, telemetry.WithTelemetryConfig(telemetryConfig(cfg)))
	if err != nil {
		// Telemetry must not stop the document from being refreshed
		logger.Error(err, "Failed to initialize telemetry, continuing without it")
		if tel, err = telemetry.New(ctx); err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
	}
	defer finishTelemetry(ctx, tel)

	metrics, err := telemetry.NewFetchMetrics(tel.MeterProvider())
	if err != nil {
		logger.Error(err, "Failed to create fetch metrics")
	}

	transport, err := telemetry.NewTransport(http.DefaultTransport, tel.TracerProvider(), tel.MeterProvider())
	if err != nil {
		return fmt.Errorf("failed to create HTTP transport: %w", err)
	}

	client := httpclient.NewDefaultClient(cfg.GetTimeout(),
		httpclient.WithMaxAttempts(cfg.Retry.MaxAttempts),
		httpclient.WithInitialInterval(cfg.GetRetryInterval()),
		httpclient.WithTransport(transport),
	)

	registry := sources.NewDefaultRegistry(client,
		sources.WithAPIURL(cfg.GitHub.APIURL),
		sources.WithToken(cfg.GitHub.Token),
	)

	pipelineOpts := []sync.PipelineOption{
		sync.WithPipelineTracer(tel.Tracer(tracerName)),
		sync.WithOrchestratorOptions(
			sync.WithConcurrency(cfg.Concurrency),
			sync.WithTimeout(cfg.GetTimeout()),
			sync.WithFailurePolicy(cfg.OnFailure),
			sync.WithMetrics(metrics),
		),
	}
	if cfg.StatusFile != "" {
		pipelineOpts = append(pipelineOpts, sync.WithStatusStore(status.NewFileStatusPersistence(cfg.StatusFile)))
	}

	pipeline := sync.NewPipeline(registry, document.NewFilePersister(cfg.Output), pipelineOpts...)
	result, runErr := pipeline.Execute(ctx, cfg.Tools())

	if opts.summary && result != nil {
		if err := printSummary(cmd.OutOrStdout(), result); err != nil {
			logger.Error(err, "Failed to print summary")
		}
	}

	return runErr
}

func telemetryConfig(cfg *config.Config) *telemetry.Config {
	tc := &telemetry.Config{
		ServiceVersion: versions.GetBuildInfo().Version,
		MetricsFile:    cfg.MetricsFile,
	}
	if cfg.Telemetry != nil {
		tc.Enabled = cfg.Telemetry.Enabled
		tc.Endpoint = cfg.Telemetry.Endpoint
		tc.Insecure = cfg.Telemetry.Insecure
		tc.Sampling = cfg.Telemetry.Sampling
	}
	return tc
}

// finishTelemetry writes the metrics file and flushes exporters. Errors are
// logged only; the document has already been handled by then.
func finishTelemetry(ctx context.Context, tel *telemetry.Telemetry) {
	logger := logging.FromContext(ctx)

	if err := tel.WriteMetrics(ctx); err != nil {
		logger.Error(err, "Failed to write metrics file")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), telemetryShutdownTimeout)
	defer cancel()
	if err := tel.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "Failed to shutdown telemetry")
	}
}

func printSummary(w io.Writer, result *sync.Result) error {
	table := tablewriter.NewWriter(w)
	table.Header("Tool", "Status", "Version", "Detail")

	for _, o := range result.Outcomes {
		version := ""
		if o.Info != nil {
			version = o.Info.Version
		}
		detail := ""
		switch {
		case o.Err != nil:
			detail = fmt.Sprintf("%s: %v", o.Kind, o.Err)
		case o.Regression:
			detail = "older than previous version"
		}
		if err := table.Append(o.ToolID, string(o.Status), version, detail); err != nil {
			return fmt.Errorf("failed to add row for %s: %w", o.ToolID, err)
		}
	}

	counts := result.Counts()
	if err := table.Append("", "", "", fmt.Sprintf("fetched %d, retained %d, failed %d, skipped %d",
		counts.Fetched, counts.Retained, counts.Failed, counts.Skipped)); err != nil {
		return err
	}

	return table.Render()
}
