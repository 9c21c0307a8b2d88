package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/tent/pkg/docs"
)

var (
	modulesPlain bool
	modulesWidth int
)

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List the available test modules",
	Args:  cobra.NoArgs,
	RunE:  runModules,
}

func runModules(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd)
	if err != nil {
		return err
	}
	mods := ws.reg.Catalog()
	if modulesPlain {
		return docs.WritePlain(cmd.OutOrStdout(), mods)
	}
	out, err := docs.Terminal(mods, modulesWidth)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

func init() {
	modulesCmd.Flags().BoolVar(&modulesPlain, "plain", false, "plain text listing without styling")
	modulesCmd.Flags().IntVar(&modulesWidth, "width", 100, "word wrap width for styled output (0 disables)")
	rootCmd.AddCommand(modulesCmd)
}
