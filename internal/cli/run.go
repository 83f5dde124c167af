package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/LeJamon/shalltest/internal/emulator"
	"github.com/LeJamon/shalltest/internal/rpc"
	"github.com/LeJamon/shalltest/internal/scenario"
	"github.com/LeJamon/shalltest/internal/storage"
	"github.com/LeJamon/shalltest/internal/storage/txlog"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// Run flags
	runEndpoint string
	runParallel int
	runJSON     bool
)

var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml>...",
	Short: "Run scenario files",
	Long: `Run one or more YAML scenarios. Each scenario gets a fresh in-memory
emulator configured from the emulator section, unless --endpoint points at a
running "shalltest serve", in which case all scenarios share that emulator.

The command fails if any scenario has a failing step.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScenarios,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runEndpoint, "endpoint", "", "JSON-RPC endpoint of a running emulator")
	runCmd.Flags().IntVarP(&runParallel, "parallel", "p", 4, "maximum number of scenarios run at once")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print reports as JSON")
}

func runScenarios(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	// Scenarios must not see each other's state, so local runs never use
	// the configured persistent backends.
	emuCfg := cfg.EmulatorConfig()
	emuCfg.Storage = storage.DefaultConfig()
	emuCfg.TxLog = txlog.Config{Backend: txlog.BackendMemory}

	reports, err := runFiles(cmd.Context(), args, emuCfg, runEndpoint, runParallel, logger)
	if err != nil {
		return err
	}
	if err := printReports(cmd.OutOrStdout(), reports, runJSON); err != nil {
		return err
	}

	failed := 0
	for _, r := range reports {
		if !r.Passed() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(reports))
	}
	return nil
}

// runFiles loads and runs every scenario file, at most parallel at a time.
// Reports are returned in the order of paths.
func runFiles(ctx context.Context, paths []string, emuCfg emulator.Config, endpoint string, parallel int, logger *zap.Logger) ([]*scenario.Report, error) {
	scenarios := make([]*scenario.Scenario, len(paths))
	for i, path := range paths {
		sc, err := scenario.Load(path)
		if err != nil {
			return nil, err
		}
		scenarios[i] = sc
	}

	var remote *rpc.Client
	if endpoint != "" {
		remote = rpc.NewClient(endpoint)
	}

	if parallel < 1 {
		parallel = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	reports := make([]*scenario.Report, len(scenarios))
	for i, sc := range scenarios {
		g.Go(func() error {
			scLogger := logger.With(zap.String("file", filepath.Base(paths[i])))
			if remote != nil {
				report, err := scenario.NewRunner(remote, scLogger).Run(ctx, sc)
				reports[i] = report
				return err
			}
			return emulator.Run(ctx, emuCfg, func(emu *emulator.Emulator) error {
				report, err := scenario.NewRunner(emu, scLogger).Run(ctx, sc)
				reports[i] = report
				return err
			}, emulator.WithLogger(scLogger.Named("emulator")))
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func printReports(w io.Writer, reports []*scenario.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}
	for _, r := range reports {
		if _, err := io.WriteString(w, r.String()); err != nil {
			return err
		}
	}
	return nil
}
