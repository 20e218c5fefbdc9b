package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gotrs-io/boardcheck/internal/artifacts"
	"github.com/gotrs-io/boardcheck/internal/config"
	"github.com/gotrs-io/boardcheck/internal/fixtureapp"
	"github.com/gotrs-io/boardcheck/internal/report"
	"github.com/gotrs-io/boardcheck/internal/runner"
	"github.com/gotrs-io/boardcheck/internal/scenario"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a scenario file",
	Long: `Validate checks a scenario file against the scenario schema and reports
duplicate names, duplicate cards and repeated tags. Without a file the
built-in table is checked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

var printSchema bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the active scenario table",
	RunE:  runList,
}

var listOnly string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the scenario table on a schedule",
	Long: `Watch runs the scenario table on a cron schedule until interrupted.
The config file is reloaded when it changes; timing, retry and report
settings apply to the next run. base_url and browser changes need a restart.`,
	RunE: runWatch,
}

var (
	watchSchedule string
	watchNow      bool
)

var serveFixtureCmd = &cobra.Command{
	Use:   "serve-fixture",
	Short: "Serve the built-in fixture board",
	RunE:  runServeFixture,
}

var (
	fixtureAddr  string
	fixtureBoard string
)

func init() {
	validateCmd.Flags().BoolVar(&printSchema, "schema", false, "Print the JSON schema instead of validating")
	listCmd.Flags().StringVar(&listOnly, "only", "", "List only scenarios whose name contains this text")

	wf := watchCmd.Flags()
	wf.StringVar(&watchSchedule, "schedule", "", "Cron schedule (default: monitor.schedule from config)")
	wf.BoolVar(&watchNow, "now", false, "Run once immediately before the first tick")
	wf.StringVar(&runOpts.scenarios, "scenarios", "", "Scenario file (default: config scenarios, else the built-in table)")
	wf.StringVar(&runOpts.only, "only", "", "Run only scenarios whose name contains this text")
	wf.StringVar(&runOpts.driver, "driver", "playwright", "Page driver: playwright or http (no JavaScript)")
	wf.BoolVar(&runOpts.headless, "headless", false, "Hide the browser window")
	wf.BoolVar(&runOpts.offlineFixture, "offline-fixture", false, "Run against the built-in fixture board instead of base_url")

	serveFixtureCmd.Flags().StringVar(&fixtureAddr, "addr", ":8090", "Listen address")
	serveFixtureCmd.Flags().StringVar(&fixtureBoard, "board", "", "Board YAML (default: the built-in board)")

	rootCmd.AddCommand(validateCmd, listCmd, watchCmd, serveFixtureCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if printSchema {
		data, err := scenario.Schema()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	table, err := scenario.Load(path)
	if err != nil {
		return err
	}
	source := path
	if source == "" {
		source = "built-in table"
	}
	fmt.Fprintf(out, "✓ %s: %d scenarios across %d sections\n", source, table.Len(), len(table.Sections()))
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return err
	}
	table, err := loadTable(cfg.Scenarios, listOnly)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSECTION\tCOLUMN\tTASK\tTAGS")
	for _, s := range table.Scenarios {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.Name, s.Section, s.Column, s.Task, strings.Join(s.Tags, ", "))
	}
	return tw.Flush()
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, _, err := prepare(ctx, runOpts)
	if err != nil {
		return err
	}
	baseURL := cfg.BaseURL

	watcher, err := config.Watch(configFlag, func(*config.Config) {
		logger.Printf("config reloaded; changes apply to the next run")
	})
	if err != nil {
		return err
	}
	current := func() *config.Config {
		c := *watcher.Get()
		runOpts.applyFlags(&c)
		c.BaseURL = baseURL
		return &c
	}

	driver, err := newDriver(cfg, runOpts.driver)
	if err != nil {
		return err
	}
	defer driver.Close()

	out := cmd.OutOrStdout()
	// One registry for the whole watch so counters accumulate across runs.
	metrics := report.NewMetrics()
	schedule := watchSchedule
	if schedule == "" {
		schedule = cfg.Monitor.Schedule
	}

	var last *config.Config
	task := runner.NewBoardCheckTask(nil, func() (*scenario.Table, error) {
		return loadTable(current().Scenarios, runOpts.only)
	}, schedule)
	task.RunnerFunc = func() *runner.Runner {
		last = current()
		if err := artifacts.NewLayout(last.Report.OutputDir).Reset(); err != nil {
			logger.Printf("reset report dir: %v", err)
		}
		opts := runner.OptionsFromConfig(last)
		opts.OnResult = report.NewList(out).Result
		return runner.New(driver, opts)
	}
	task.OnSummary = func(sum *runner.Summary) {
		report.NewList(out).Summary(sum)
		layout := artifacts.NewLayout(last.Report.OutputDir)
		if err := publish(ctx, out, last, sum, layout, metrics); err != nil {
			logger.Printf("publish: %v", err)
		}
	}

	registry := runner.NewTaskRegistry()
	registry.Register(task)
	monitor := runner.NewMonitor(registry)
	if watchNow {
		if err := monitor.RunNow(ctx, task.Name()); err != nil {
			logger.Printf("initial run: %v", err)
		}
	}
	return monitor.Start(ctx)
}

func runServeFixture(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := config.Load(configFlag)
	if err != nil {
		return err
	}
	opts := fixtureapp.Options{
		Identifier: cfg.Credentials.Identifier,
		Password:   cfg.Credentials.Password,
	}
	if fixtureBoard != "" {
		data, err := os.ReadFile(fixtureBoard)
		if err != nil {
			return err
		}
		if opts.Board, err = fixtureapp.ParseBoard(data); err != nil {
			return err
		}
	}
	app, err := fixtureapp.New(opts)
	if err != nil {
		return err
	}
	logger.Printf("fixture board listening on %s (login %s)", fixtureAddr, opts.Identifier)
	return app.ListenAndServe(ctx, fixtureAddr)
}
