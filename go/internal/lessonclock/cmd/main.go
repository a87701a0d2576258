// Command lessonclock drives one lesson timer from the terminal and gives
// local live feedback on challenge attempts.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mcdev12/academy/go/clients/training_api_client"
	"github.com/mcdev12/academy/go/internal/challenges/evaluation"
	"github.com/mcdev12/academy/go/internal/lessonclock"
	"github.com/mcdev12/academy/go/internal/lessons/timer"
	"github.com/mcdev12/academy/go/internal/models"
)

var (
	apiURL     string
	gatewayURL string
	token      string
	timeout    time.Duration
	lessonID   string
	userID     string
	planID     string
	verbose    bool

	finishApproved bool

	evalChallengeID string
	evalDefinition  models.ChallengeDefinition
	evalAttempt     models.ChallengeAttempt
	evalKpiMode     string
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: could not load .env file: %v\n", err)
	}

	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "lessonclock",
		Short:         "Lesson timer and challenge feedback client",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
			zerolog.SetGlobalLevel(zerolog.WarnLevel)
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&apiURL, "api", envOr("TRAINING_API_URL", training_api_client.DefaultBaseURL), "training API base URL")
	flags.StringVar(&token, "token", os.Getenv("TRAINING_API_TOKEN"), "bearer token")
	flags.DurationVar(&timeout, "timeout", 10*time.Second, "per request timeout")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(newLessonCmd("status", "Show the lesson timer", runStatusCmd))
	rootCmd.AddCommand(newLessonCmd("start", "Start the lesson", actionCmd((*timer.Timer).Start)))
	rootCmd.AddCommand(newLessonCmd("pause", "Pause the lesson", actionCmd((*timer.Timer).Pause)))
	rootCmd.AddCommand(newLessonCmd("resume", "Resume the lesson", actionCmd((*timer.Timer).Resume)))
	rootCmd.AddCommand(newFinishCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newEvaluateCmd())

	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newClient() *training_api_client.TrainingApiClient {
	client := training_api_client.NewTrainingApiClient(apiURL, token)
	client.SetTimeout(timeout)
	log.Debug().Str("api", client.BaseURL()).Dur("timeout", timeout).Msg("training api client")
	return client
}

func newTimer(key models.LessonKey, opts ...timer.Option) *timer.Timer {
	opts = append([]timer.Option{timer.WithFallbackMessage(lessonclock.FallbackMessage)}, opts...)
	return timer.New(newClient(), key, opts...)
}

func addKeyFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&lessonID, "lesson", "", "lesson id")
	cmd.Flags().StringVar(&userID, "user", os.Getenv("TRAINING_USER_ID"), "trainee user id")
	cmd.Flags().StringVar(&planID, "plan", "", "training plan id (optional)")
	_ = cmd.MarkFlagRequired("lesson")
}

func newLessonCmd(use, short string, run func(*cobra.Command, []string) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE:  run,
	}
	addKeyFlags(cmd)
	return cmd
}

func newFinishCmd() *cobra.Command {
	cmd := newLessonCmd("finish", "Finish the lesson", func(cmd *cobra.Command, _ []string) error {
		return withTimer(cmd.Context(), func(ctx context.Context, t *timer.Timer) error {
			return t.Finish(ctx, finishApproved)
		})
	})
	cmd.Flags().BoolVar(&finishApproved, "approved", false, "mark the lesson as approved")
	return cmd
}

func newWatchCmd() *cobra.Command {
	cmd := newLessonCmd("watch", "Show a live countdown until interrupted", runWatchCmd)
	cmd.Flags().StringVar(&gatewayURL, "gateway", os.Getenv("TRAINING_GATEWAY_URL"), "gateway URL for pushed lesson events")
	return cmd
}

func newEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate an attempt locally against challenge criteria",
		Args:  cobra.NoArgs,
		RunE:  runEvaluateCmd,
	}

	f := cmd.Flags()
	f.StringVar(&evalChallengeID, "challenge", "", "load criteria from this challenge instead of flags")
	f.IntVar(&evalDefinition.OperationsRequired, "operations-required", 0, "operations required")
	f.Float64Var(&evalDefinition.TimeLimitMinutes, "time-limit", 0, "time limit in minutes")
	f.IntVar(&evalDefinition.MaxErrors, "max-errors", 0, "operations with errors allowed")
	f.BoolVar(&evalDefinition.UseVolumeKpi, "volume-kpi", true, "require the operation volume")
	f.BoolVar(&evalDefinition.UseMpuKpi, "mpu-kpi", true, "require the minutes per unit target")
	f.BoolVar(&evalDefinition.UseErrorsKpi, "errors-kpi", true, "enforce the error budget")
	f.StringVar(&evalKpiMode, "mode", string(models.KpiModeAuto), "AUTO or MANUAL")

	f.IntVar(&evalAttempt.TotalOperations, "operations", 0, "operations completed")
	f.Float64Var(&evalAttempt.TotalTimeMinutes, "minutes", 0, "minutes spent")
	f.IntVar(&evalAttempt.OperationsWithErrors, "errors", 0, "operations with errors")
	return cmd
}

func lessonKey() (models.LessonKey, error) {
	var key models.LessonKey

	id, err := uuid.Parse(lessonID)
	if err != nil {
		return key, fmt.Errorf("invalid --lesson: %w", err)
	}
	key.LessonID = id

	if key.UserID, err = uuid.Parse(userID); err != nil {
		return key, fmt.Errorf("invalid --user: %w", err)
	}

	if planID != "" {
		id, err := uuid.Parse(planID)
		if err != nil {
			return key, fmt.Errorf("invalid --plan: %w", err)
		}
		key.TrainingPlanID = uuid.NullUUID{UUID: id, Valid: true}
	}
	return key, nil
}

// withTimer loads the timer, runs fn and prints the resulting state.
func withTimer(ctx context.Context, fn func(context.Context, *timer.Timer) error) error {
	key, err := lessonKey()
	if err != nil {
		return err
	}

	t := newTimer(key)
	defer t.Close()

	if err := t.Fetch(ctx); err != nil {
		return fmt.Errorf("failed to load lesson: %w", err)
	}
	if fn != nil {
		if err := fn(ctx, t); err != nil {
			log.Debug().Err(err).Msg("lesson action failed")
			return lessonclock.ActionError(err, t.Snapshot())
		}
	}

	fmt.Println(lessonclock.StatusLine(t.Snapshot()))
	return nil
}

func actionCmd(action func(*timer.Timer, context.Context) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		return withTimer(cmd.Context(), func(ctx context.Context, t *timer.Timer) error {
			return action(t, ctx)
		})
	}
}

func runStatusCmd(cmd *cobra.Command, _ []string) error {
	return withTimer(cmd.Context(), nil)
}

func runWatchCmd(cmd *cobra.Command, _ []string) error {
	key, err := lessonKey()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t := newTimer(key, timer.WithOnChange(func(snap timer.Snapshot) {
		fmt.Printf("\r\033[K%s", lessonclock.StatusLine(snap))
	}))
	defer t.Close()

	if err := t.Fetch(ctx); err != nil {
		return fmt.Errorf("failed to load lesson: %w", err)
	}

	if gatewayURL != "" {
		stream, err := training_api_client.SubscribeLessonEvents(ctx, gatewayURL, token, key)
		if err != nil {
			log.Warn().Err(err).Msg("lesson events unavailable, showing local countdown only")
		} else {
			go t.Follow(ctx, stream)
		}
	}

	<-ctx.Done()
	fmt.Println()
	return nil
}

func runEvaluateCmd(cmd *cobra.Command, _ []string) error {
	def := evalDefinition
	def.KpiMode = models.KpiMode(evalKpiMode)

	if evalChallengeID != "" {
		id, err := uuid.Parse(evalChallengeID)
		if err != nil {
			return fmt.Errorf("invalid --challenge: %w", err)
		}
		loaded, err := newClient().GetChallenge(cmd.Context(), id)
		if err != nil {
			return err
		}
		def = *loaded
	} else {
		evaluation.RecomputeTargetMpu(&def)
	}

	if err := evaluation.ValidateDefinition(def); err != nil {
		log.Warn().Err(err).Msg("challenge criteria look inconsistent")
	}

	res, err := evaluation.Evaluate(def, evalAttempt)
	fmt.Print(lessonclock.EvaluationReport(res))
	return err
}
