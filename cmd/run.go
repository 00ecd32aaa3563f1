// cmd/run.go
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/marionette-cli/api/schemas"
	"github.com/xkilldash9x/marionette-cli/internal/agent"
	"github.com/xkilldash9x/marionette-cli/internal/agent/display"
	"github.com/xkilldash9x/marionette-cli/internal/agent/tools"
	"github.com/xkilldash9x/marionette-cli/internal/browser/session"
	"github.com/xkilldash9x/marionette-cli/internal/config"
	"github.com/xkilldash9x/marionette-cli/internal/llmclient"
	"github.com/xkilldash9x/marionette-cli/internal/observability"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// newRunCmd creates the `run` command.
func newRunCmd() *cobra.Command {
	var (
		startURL    string
		tasksFile   string
		transcript  string
		autoApprove bool
		concurrency int
	)

	runCmd := &cobra.Command{
		Use:   "run [task description...]",
		Short: "Runs an agent task against a live browser",
		Long: `Starts a browser, hands control to the configured model and executes the
given task until the model reports completion. With --tasks-file, one line
per task, tasks run in parallel sessions sharing a single browser process.`,
		Args: cobra.ArbitraryArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("agent.tool_version", cmd.Flags().Lookup("tool-version")); err != nil {
				return err
			}
			if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			tasks, err := collectTasks(args, tasksFile)
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				return fmt.Errorf("no task given: pass a task description or --tasks-file")
			}

			client, err := llmclient.NewClient(cfg.Agent.LLM)
			if err != nil {
				return fmt.Errorf("failed to create model client: %w", err)
			}

			manager, err := session.NewManager(ctx, cfg.Browser)
			if err != nil {
				return err
			}
			defer manager.Close()

			acknowledger := buildAcknowledger(autoApprove)

			if len(tasks) == 1 {
				result, err := runTask(ctx, cfg, manager, client, acknowledger, tasks[0], startURL)
				if result != nil && transcript != "" {
					if werr := writeTranscript(transcript, result.Conversation); werr != nil {
						logger.Error("Failed to write transcript", zap.Error(werr))
					}
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), result.FinalText)
				return nil
			}

			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(concurrency)
			for i, task := range tasks {
				g.Go(func() error {
					result, err := runTask(gctx, cfg, manager, client, acknowledger, task, startURL)
					if err != nil {
						return fmt.Errorf("task %d failed: %w", i+1, err)
					}
					logger.Info("Task finished.",
						zap.Int("task", i+1),
						zap.String("summary", result.FinalText),
					)
					return nil
				})
			}
			return g.Wait()
		},
	}

	runCmd.Flags().StringVar(&startURL, "start-url", "", "URL to open before the model takes over")
	runCmd.Flags().StringVar(&tasksFile, "tasks-file", "", "file with one task per line, run concurrently")
	runCmd.Flags().StringVar(&transcript, "transcript", "", "write the redacted conversation as JSON to this path")
	runCmd.Flags().BoolVarP(&autoApprove, "auto-approve", "y", false, "acknowledge model safety checks without prompting")
	runCmd.Flags().IntVar(&concurrency, "concurrency", 2, "parallel sessions when running a tasks file")
	runCmd.Flags().String("tool-version", "", "computer tool version to advertise")
	runCmd.Flags().Bool("headless", true, "run the browser headless")

	return runCmd
}

// runTask owns one session lifecycle start to finish.
func runTask(
	ctx context.Context,
	cfg *config.Config,
	manager *session.Manager,
	client schemas.ModelClient,
	acknowledger schemas.SafetyAcknowledger,
	task, startURL string,
) (*agent.Result, error) {
	sess, err := manager.NewSession(cfg.Agent.Display, cfg.Network)
	if err != nil {
		return nil, fmt.Errorf("failed to open browser session: %w", err)
	}
	defer sess.Close(context.Background())

	if startURL != "" {
		if err := sess.Navigate(ctx, tools.NormalizeURL(startURL)); err != nil {
			return nil, err
		}
	}

	version, err := tools.ResolveVersion(cfg.Agent.ToolVersion)
	if err != nil {
		return nil, err
	}

	logical := schemas.Viewport{Width: cfg.Agent.Display.Width, Height: cfg.Agent.Display.Height}
	scaler := display.NewScaler(logical, sess.Viewport())
	executor := tools.NewExecutor(sess, scaler, tools.NewDefaultKeyMap(), version)

	loop, err := agent.NewLoop(agent.Options{
		Config:       cfg.Agent,
		Client:       client,
		Executor:     executor,
		Acknowledger: acknowledger,
	})
	if err != nil {
		return nil, err
	}

	return loop.Run(ctx, task)
}

func collectTasks(args []string, tasksFile string) ([]string, error) {
	if tasksFile == "" {
		if len(args) == 0 {
			return nil, nil
		}
		return []string{strings.Join(args, " ")}, nil
	}

	f, err := os.Open(tasksFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open tasks file: %w", err)
	}
	defer f.Close()

	var tasks []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tasks = append(tasks, line)
	}
	return tasks, scanner.Err()
}

// buildAcknowledger prompts on stdin unless the run is pre-approved.
func buildAcknowledger(autoApprove bool) schemas.SafetyAcknowledger {
	if autoApprove {
		return func(message string) bool {
			observability.GetLogger().Warn("Auto-approving safety check.", zap.String("message", message))
			return true
		}
	}

	reader := bufio.NewReader(os.Stdin)
	return func(message string) bool {
		fmt.Fprintf(os.Stderr, "\nThe model raised a safety check:\n  %s\nProceed? [y/N]: ", message)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}

func writeTranscript(path string, conv schemas.Conversation) error {
	data, err := json.MarshalIndent(conv.Redacted(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
