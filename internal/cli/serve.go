package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/LeJamon/shalltest/internal/emulator"
	"github.com/LeJamon/shalltest/internal/rpc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Serve flags
	serveAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the emulator over JSON-RPC",
	Long: `Start an emulator and expose it over HTTP:
- JSON-RPC on /
- sealed transaction stream on /ws
- health check on /health

The server stops on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "address to listen on (overrides rpc.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	rpcCfg := cfg.RPC
	if serveAddr != "" {
		rpcCfg.Addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg.EmulatorConfig(), rpcCfg, logger, func(addr string) {
		fmt.Fprintf(cmd.OutOrStdout(), "JSON-RPC:  http://%s/\nWebSocket: ws://%s/ws\n", addr, addr)
	})
}

// serve runs an emulator and its RPC server until ctx is done. ready is
// called with the listening address.
func serve(ctx context.Context, emuCfg emulator.Config, rpcCfg rpc.Config, logger *zap.Logger, ready func(addr string)) error {
	return emulator.Run(ctx, emuCfg, func(emu *emulator.Emulator) error {
		srv := rpc.NewServer(emu, rpcCfg, logger)
		ln, err := net.Listen("tcp", rpcCfg.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", rpcCfg.Addr, err)
		}
		if ready != nil {
			ready(ln.Addr().String())
		}
		return srv.Serve(ctx, ln)
	}, emulator.WithLogger(logger))
}
