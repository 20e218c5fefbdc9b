package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gotrs-io/boardcheck/internal/artifacts"
	"github.com/gotrs-io/boardcheck/internal/config"
	"github.com/gotrs-io/boardcheck/internal/fixtureapp"
	"github.com/gotrs-io/boardcheck/internal/page"
	"github.com/gotrs-io/boardcheck/internal/page/htmlpage"
	"github.com/gotrs-io/boardcheck/internal/page/pwpage"
	"github.com/gotrs-io/boardcheck/internal/report"
	"github.com/gotrs-io/boardcheck/internal/runner"
	"github.com/gotrs-io/boardcheck/internal/scenario"
)

var logger = log.New(os.Stderr, "[boardcheck] ", log.LstdFlags)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scenario table once",
	Long: `Run logs in once per scenario in a fresh browser context, checks every
scenario and writes the list report to stdout plus the HTML report, JSON
summary and optional metrics into the report directory.

Exits non-zero when any scenario fails.`,
	RunE: runRun,
}

type runFlags struct {
	scenarios      string
	only           string
	driver         string
	headed         bool
	headless       bool
	workers        int
	retries        int
	offlineFixture bool
}

var runOpts runFlags

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.scenarios, "scenarios", "", "Scenario file (default: config scenarios, else the built-in table)")
	f.StringVar(&runOpts.only, "only", "", "Run only scenarios whose name contains this text")
	f.StringVar(&runOpts.driver, "driver", "playwright", "Page driver: playwright or http (no JavaScript)")
	f.BoolVar(&runOpts.headed, "headed", false, "Show the browser window")
	f.BoolVar(&runOpts.headless, "headless", false, "Hide the browser window")
	f.IntVar(&runOpts.workers, "workers", 0, "Parallel scenarios (overrides config)")
	f.IntVar(&runOpts.retries, "retries", -1, "Whole-scenario retries (overrides config)")
	f.BoolVar(&runOpts.offlineFixture, "offline-fixture", false, "Run against the built-in fixture board instead of base_url")
	rootCmd.AddCommand(runCmd)
}

// applyFlags overlays command-line overrides on cfg.
func (f runFlags) applyFlags(cfg *config.Config) {
	if f.headed {
		cfg.Headless = false
	}
	if f.headless {
		cfg.Headless = true
	}
	if f.workers > 0 {
		cfg.Workers = f.workers
	}
	if f.retries >= 0 {
		cfg.Retries = f.retries
	}
	if f.scenarios != "" {
		cfg.Scenarios = f.scenarios
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func loadTable(path, only string) (*scenario.Table, error) {
	table, err := scenario.Load(path)
	if err != nil {
		return nil, err
	}
	table = table.Filter(only)
	if table.Len() == 0 {
		return nil, fmt.Errorf("no scenarios match %q", only)
	}
	return table, nil
}

// startFixture serves the fixture board on a loopback port and returns its
// base URL.
func startFixture(ctx context.Context, cfg *config.Config) (string, error) {
	app, err := fixtureapp.New(fixtureapp.Options{
		Identifier: cfg.Credentials.Identifier,
		Password:   cfg.Credentials.Password,
	})
	if err != nil {
		return "", err
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	go func() {
		if err := app.Serve(ctx, ln); err != nil {
			logger.Printf("fixture server: %v", err)
		}
	}()
	return "http://" + ln.Addr().String() + "/", nil
}

func newDriver(cfg *config.Config, name string) (page.Driver, error) {
	switch name {
	case "http":
		return htmlpage.NewHTTPDriver(cfg.BaseURL), nil
	case "", "playwright":
		return pwpage.Launch(pwpage.Options{
			Browser:        cfg.Browser,
			Headless:       cfg.Headless,
			SlowMo:         cfg.SlowMo,
			BaseURL:        cfg.BaseURL,
			DefaultTimeout: cfg.Timeout,
		})
	}
	return nil, fmt.Errorf("unknown driver %q (want playwright or http)", name)
}

// prepare loads config and scenarios and, for offline runs, starts the
// fixture board. The fixture stops with ctx.
func prepare(ctx context.Context, f runFlags) (*config.Config, *scenario.Table, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, nil, err
	}
	f.applyFlags(cfg)
	table, err := loadTable(cfg.Scenarios, f.only)
	if err != nil {
		return nil, nil, err
	}
	if f.offlineFixture {
		base, err := startFixture(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to start fixture board: %w", err)
		}
		cfg.BaseURL = base
	} else if err := config.CheckReachable(ctx, cfg.BaseURL); err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, table, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, table, err := prepare(ctx, runOpts)
	if err != nil {
		return err
	}
	driver, err := newDriver(cfg, runOpts.driver)
	if err != nil {
		return err
	}
	defer driver.Close()

	layout := artifacts.NewLayout(cfg.Report.OutputDir)
	if err := layout.Reset(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	list := report.NewList(out)
	opts := runner.OptionsFromConfig(cfg)
	opts.OnResult = list.Result
	fmt.Fprintf(out, "\nRunning %d scenarios against %s\n\n", table.Len(), cfg.BaseURL)

	sum := runner.New(driver, opts).Run(ctx, table)
	list.Summary(sum)
	if err := publish(ctx, out, cfg, sum, layout, report.NewMetrics()); err != nil {
		logger.Printf("publish: %v", err)
	}
	if !sum.OK() {
		return errScenariosFailed
	}
	return nil
}

// publish writes every configured output for a finished run.
func publish(ctx context.Context, out io.Writer, cfg *config.Config, sum *runner.Summary, layout *artifacts.Layout, metrics *report.Metrics) error {
	if err := report.WriteJSON(sum, cfg.BaseURL, layout); err != nil {
		return err
	}
	if cfg.Report.HTML {
		p, err := report.WriteHTML(sum, cfg.BaseURL, layout)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n  HTML report: %s\n", p)
	}
	metrics.Observe(sum)
	if cfg.Report.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.Report.MetricsFile); err != nil {
			return err
		}
	}
	if cfg.Upload.Enabled {
		up, err := artifacts.NewUploader(ctx, artifacts.UploaderConfig{
			Endpoint:        cfg.Upload.Endpoint,
			Region:          cfg.Upload.Region,
			AccessKeyID:     cfg.Upload.AccessKeyID,
			SecretAccessKey: cfg.Upload.SecretAccessKey,
			Bucket:          cfg.Upload.Bucket,
			Prefix:          cfg.Upload.Prefix,
			UsePathStyle:    cfg.Upload.UsePathStyle,
		})
		if err != nil {
			return err
		}
		if _, err := up.UploadDir(ctx, layout.Root, sum.RunID.String()); err != nil {
			return fmt.Errorf("upload: %w", err)
		}
	}
	return nil
}
