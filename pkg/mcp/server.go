// Package mcp exposes tent to MCP clients over stdio.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates an MCP server with the tent tools registered.
func NewServer(version string, t *Tools) *server.MCPServer {
	s := server.NewMCPServer(
		"tent",
		version,
		server.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool("tent/modules",
			mcp.WithDescription("List the test modules, their invocables and parameters"),
		),
		t.HandleModules,
	)

	s.AddTool(
		mcp.NewTool("tent/list",
			mcp.WithDescription("List suites, or the test case titles of one suite"),
			mcp.WithString("suite", mcp.Description("Suite name; omit to list every suite")),
		),
		t.HandleList,
	)

	s.AddTool(
		mcp.NewTool("tent/validate",
			mcp.WithDescription("Validate a suite against the module catalog without running it"),
			mcp.WithString("suite", mcp.Required(), mcp.Description("Suite name")),
		),
		t.HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("tent/run",
			mcp.WithDescription("Run a suite, or one of its test cases, and append the run to the suite log"),
			mcp.WithString("suite", mcp.Required(), mcp.Description("Suite name")),
			mcp.WithNumber("case", mcp.Description("Run only the test case at this 0-based index")),
		),
		t.HandleRun,
	)

	s.AddTool(
		mcp.NewTool("tent/runmod",
			mcp.WithDescription("Run one module invocable without parameters"),
			mcp.WithString("ref", mcp.Required(), mcp.Description("module or module.invocable")),
		),
		t.HandleRunmod,
	)

	s.AddTool(
		mcp.NewTool("tent/log",
			mcp.WithDescription("Show the most recent logged run of a suite"),
			mcp.WithString("suite", mcp.Required(), mcp.Description("Suite name")),
		),
		t.HandleLog,
	)

	s.AddTool(
		mcp.NewTool("tent/schema",
			mcp.WithDescription("Export the suite document JSON Schema"),
		),
		t.HandleSchema,
	)

	return s
}

// Serve runs the server on stdin/stdout until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
