package cli

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/LeJamon/shalltest/internal/rpc"
	"github.com/spf13/cobra"
)

var (
	// RPC flags
	rpcEndpoint string
)

// rpcCmd calls a JSON-RPC method on a running emulator.
var rpcCmd = &cobra.Command{
	Use:   "rpc <method> [params-json]",
	Short: "Call a JSON-RPC method on a running emulator",
	Long: `Call a method on a running "shalltest serve" and print the result.

Examples:
  shalltest rpc server_info
  shalltest rpc get_account_address '{"name": "alice"}'
  shalltest rpc send_transaction '{"transaction": {"code": "token.setup"}}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var params any
		if len(args) == 2 {
			params = json.RawMessage(args[1])
			if !json.Valid(params.(json.RawMessage)) {
				return fmt.Errorf("params are not valid JSON: %s", args[1])
			}
		}

		var result json.RawMessage
		client := rpc.NewClient(rpcEndpoint)
		if err := client.Call(cmd.Context(), args[0], params, &result); err != nil {
			return err
		}

		// Pretty print the result
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, result, "", "  "); err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), string(result))
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rpcCmd)

	rpcCmd.Flags().StringVar(&rpcEndpoint, "endpoint", "http://127.0.0.1:8888", "JSON-RPC endpoint")
}
