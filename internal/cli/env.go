package cli

import (
	"context"
	"fmt"
	"time"

	"resumeflow/internal/common"
	"resumeflow/internal/kvstore"
	"resumeflow/internal/observability"
	"resumeflow/internal/preferences"
	"resumeflow/internal/types"
	"resumeflow/internal/wizard"
	"resumeflow/internal/workflow"

	"github.com/spf13/cobra"
)

// runtime is the per-invocation wiring shared by the workflow commands.
type runtime struct {
	env    *wizard.Env
	client *workflow.Client
	obs    *observability.ObservabilityManager
}

func newRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	obs, err := observability.NewObservabilityManager(observability.GetObservabilityConfig(cfg, Version), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	metrics := obs.GetMetrics()

	kv, err := kvstore.Open(cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open session storage: %w", err)
	}
	kv = kvstore.Instrument(kv, metrics)

	prefs := preferences.New(kv, logger)
	identity := workflow.Identity{
		AnonymousID: prefs.AnonymousID(),
		AdminToken:  cfg.Workflow.AdminToken,
	}
	client, err := workflow.NewClient(cfg.Workflow, identity, logger, metrics)
	if err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("failed to create workflow client: %w", err)
	}

	logger.Debug("Runtime ready",
		"engine", cfg.Workflow.BaseURL,
		"storage_backend", cfg.Storage.Backend)

	return &runtime{
		env: &wizard.Env{
			Config:  cfg,
			Logger:  logger,
			Engine:  client,
			KV:      kv,
			Prefs:   prefs,
			Metrics: metrics,
		},
		client: client,
		obs:    obs,
	}, nil
}

// Close flushes telemetry and releases storage.
func (r *runtime) Close() {
	logger := r.env.Logger
	if err := r.env.KV.Close(); err != nil {
		logger.LogError(err, "Failed to close session storage")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.obs.Shutdown(ctx); err != nil {
		logger.LogError(err, "Failed to shut down observability")
	}
}

// state fetches the current workflow state for a thread.
func (r *runtime) state(ctx context.Context, threadID string) (types.WorkflowState, error) {
	s, err := r.client.Status(ctx, threadID)
	if err != nil {
		return types.WorkflowState{}, err
	}
	return *s, nil
}

// withRuntime adapts a command body that needs the runtime to cobra's RunE.
func withRuntime(run func(cmd *cobra.Command, args []string, rt *runtime) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()
		return run(cmd, args, rt)
	}
}

// render writes v through the formatter registry using the shared flags.
func render[T any](cmd *cobra.Command, v T) error {
	return common.RunStageCommand(cmd.Context(), cmd.OutOrStdout(), getLoggerFromContext(cmd.Context()), outputConfig,
		func(context.Context) (T, error) { return v, nil })
}
