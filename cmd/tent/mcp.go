package main

import (
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/tent/pkg/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the tent tools to an MCP client over stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace(cmd)
		if err != nil {
			return err
		}
		r, err := ws.runner(nil)
		if err != nil {
			return err
		}
		return mcp.Serve(mcp.NewServer(version, mcp.NewTools(ws.reg, r, ws.cfg.SuitesDir())))
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
