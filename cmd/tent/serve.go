package main

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/tent/pkg/web"
)

var (
	servePort      int
	serveNoBrowser bool
	serveHost      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the web interface",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(cmd)
	if err != nil {
		return err
	}
	r, err := ws.runner(nil)
	if err != nil {
		return err
	}
	srv, err := web.New(ws.reg, r, ws.cfg.SuitesDir(), ws.log)
	if err != nil {
		return err
	}

	port := ws.cfg.Port()
	if cmd.Flags().Changed("port") {
		port = servePort
	}
	browse := ws.cfg.OpenBrowser() && !serveNoBrowser

	ctx, cancel := ws.context()
	defer cancel()

	out := cmd.OutOrStdout()
	return srv.Start(ctx, fmt.Sprintf("%s:%d", serveHost, port), func(url string) {
		fmt.Fprintf(out, "Serving on %s ...\n", url)
		if browse {
			if err := openBrowser(url); err != nil {
				ws.log.Warn("Could not open a browser.", "url", url, "error", err)
			}
		}
	})
}

func openBrowser(url string) error {
	var c *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		c = exec.Command("open", url)
	case "windows":
		c = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		c = exec.Command("xdg-open", url)
	}
	if err := c.Start(); err != nil {
		return err
	}
	go c.Wait()
	return nil
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "interface to bind (default: all)")
	serveCmd.Flags().BoolVar(&serveNoBrowser, "no-browser", false, "do not open a browser")
	rootCmd.AddCommand(serveCmd)
}
