/*
Copyright © 2026 JACOB ARTHURS
*/
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yudduy/sql-exenv/internal/agent"
	"github.com/yudduy/sql-exenv/internal/harness"
	"github.com/yudduy/sql-exenv/internal/output"
	"github.com/yudduy/sql-exenv/internal/planner"
	"github.com/yudduy/sql-exenv/internal/profile"
	"github.com/yudduy/sql-exenv/internal/schema"
	"github.com/yudduy/sql-exenv/internal/task"
	"github.com/yudduy/sql-exenv/internal/telemetry"
	"github.com/yudduy/sql-exenv/internal/validate"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the autonomous optimization agent over a benchmark task file",
	Long: `Run drives the Agent Controller over every task in a JSON-lines task file,
scoring each with the metric its category selects, and writes an aggregate
report.

Each task's db_id is substituted into --db if it contains a "{db_id}" or "%s" placeholder,
so one connection template can address many per-task databases.`,
	Example: `  # Run the full task file against a template connection string
  pgagent run --tasks tasks.jsonl --db "postgresql://localhost/%s"

  # Smoke-test the first 10 tasks with 4 workers
  pgagent run --tasks tasks.jsonl --profile prod --smoke --workers 4

  # Restrict to one category
  pgagent run --tasks tasks.jsonl --profile prod --category Efficiency`,
	Args: cobra.NoArgs,
	RunE: runRunCmd,
}

func runRunCmd(cmd *cobra.Command, args []string) error {
	tasksPath, _ := cmd.Flags().GetString("tasks")
	db, _ := cmd.Flags().GetString("db")
	profileName, _ := cmd.Flags().GetString("profile")
	outputPath, _ := cmd.Flags().GetString("output")
	limit, _ := cmd.Flags().GetInt("limit")
	categoryStr, _ := cmd.Flags().GetString("category")
	workers, _ := cmd.Flags().GetInt("workers")
	maxIterations, _ := cmd.Flags().GetInt("max-iterations")
	minIterations, _ := cmd.Flags().GetInt("min-iterations")
	smoke, _ := cmd.Flags().GetBool("smoke")

	if defaultTasks, defaultWorkers, err := profile.RunDefaults(); err == nil {
		if tasksPath == "" {
			tasksPath = defaultTasks
		}
		if workers == 0 {
			workers = defaultWorkers
		}
	}
	if tasksPath == "" {
		return fmt.Errorf("--tasks is required (or set task_file in a profile config)")
	}

	connTemplate, err := profile.ResolveConnStr(db, profileName)
	if err != nil {
		return err
	}
	if connTemplate == "" {
		return fmt.Errorf("--db is required (or set a default profile)")
	}

	logger, err := telemetry.New()
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync()

	opts := harness.Options{
		ConnTemplate:  connTemplate,
		Workers:       workers,
		Category:      task.Category(categoryStr),
		Limit:         limit,
		Smoke:         smoke,
		MaxIterations: maxIterations,
		MinIterations: minIterations,
		Logger:        logger,
	}

	ctx := context.Background()
	report, err := harness.Run(ctx, tasksPath, opts, makeRunnerFactory(opts, logger))
	if err != nil {
		return err
	}

	if outputPath != "" {
		if err := harness.WriteReportAtomic(outputPath, report); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Results written to %s\n", outputPath)
	}

	return output.RenderJSON(os.Stdout, report.Aggregate)
}

// makeRunnerFactory builds a harness.RunnerFactory that opens a dedicated
// connection per task and wires up a harness.DefaultRunner against it. The
// LLM client is nil here — the production binary never ships a vendor SDK
// in-tree, so "run" operates in deterministic-translator mode unless a
// caller wires a real llm.ChatClient in.
func makeRunnerFactory(opts harness.Options, logger *zap.Logger) harness.RunnerFactory {
	return func(ctx context.Context, t task.Task, connStr string) (harness.TaskRunner, error) {
		conn, err := pgx.Connect(ctx, connStr)
		if err != nil {
			logger.Error("connecting to task database", append(telemetry.TaskFields(t.InstanceID, t.DBID), zap.Error(err))...)
			return nil, fmt.Errorf("connecting to %s: %w", t.DBID, err)
		}

		exec, err := harness.NewConnExecutor(ctx, connStr, conn, logger)
		if err != nil {
			conn.Close(ctx)
			return nil, err
		}

		oracle := schema.NewOracle(conn)
		sch, err := oracle.Fetch(ctx, nil)
		if err != nil {
			sch = schema.Schema{}
		}

		agentConfig := agent.Config{
			MaxIterations: opts.MaxIterations,
			MinIterations: opts.MinIterations,
		}

		return &harness.DefaultRunner{
			Conn:        conn,
			Executor:    exec,
			Translator:  harness.NewTranslator(nil),
			Planner:     planner.Deterministic{},
			Schema:      sch,
			AgentConfig: agentConfig,
			Validators:  []validate.Validator{validate.NoREC{}},
			Logger:      logger,
		}, nil
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("tasks", "t", "", "Path to a JSON-lines task file")
	runCmd.Flags().StringP("db", "d", "", "PostgreSQL connection string or template (%s substituted with db_id)")
	runCmd.Flags().StringP("profile", "p", "", "Use named profile from config")
	runCmd.Flags().StringP("output", "o", "", "Path to write the final JSON report")
	runCmd.Flags().IntP("limit", "l", 0, "Limit to the first N tasks")
	runCmd.Flags().StringP("category", "c", "", "Restrict to one task category")
	runCmd.Flags().IntP("workers", "w", 0, "Number of concurrent task workers")
	runCmd.Flags().Int("max-iterations", 0, "Maximum Agent Controller iterations per task")
	runCmd.Flags().Int("min-iterations", 0, "Minimum iterations before early-stop checks apply")
	runCmd.Flags().Bool("smoke", false, "Restrict to the first 10 tasks")
	runCmd.MarkFlagsMutuallyExclusive("db", "profile")
}
