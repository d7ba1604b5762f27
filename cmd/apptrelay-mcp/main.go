// Command apptrelay-mcp exposes a running apptrelay server to MCP clients
// over stdio.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/apptrelay/models"
)

// maxWait bounds trigger_scrape with wait=true; a full run rarely exceeds it.
const maxWait = 20 * time.Minute

func main() {
	apiURL := os.Getenv("APPTRELAY_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:3000"
	}
	client := &apiClient{
		baseURL:      strings.TrimRight(apiURL, "/"),
		apiKey:       os.Getenv("APPTRELAY_API_KEY"),
		http:         &http.Client{Timeout: 30 * time.Second},
		pollInterval: 5 * time.Second,
	}

	s := server.NewMCPServer(
		"apptrelay",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	triggerTool := mcp.NewTool("trigger_scrape",
		mcp.WithDescription("Start a calendar scrape on the portal. The appointments with a phone number are posted to the webhook URL. Returns the run id; with wait=true, waits for the run to finish and returns its summary."),
		mcp.WithString("webhook_url",
			mcp.Required(),
			mcp.Description("Absolute http(s) URL that receives the JSON array of appointments"),
		),
		mcp.WithString("email",
			mcp.Description("Portal login email. Not needed when the server profile is still signed in or shows a password-only form."),
		),
		mcp.WithString("password",
			mcp.Description("Portal password. Not needed when the server profile is still signed in."),
		),
		mcp.WithBoolean("wait",
			mcp.Description("Wait for the run to finish (default: false)"),
		),
	)
	s.AddTool(triggerTool, handleTrigger(client))

	getRunTool := mcp.NewTool("get_run",
		mcp.WithDescription("Get the status and counts of a scraping run."),
		mcp.WithString("run_id",
			mcp.Required(),
			mcp.Description("Run id returned by trigger_scrape"),
		),
	)
	s.AddTool(getRunTool, handleGetRun(client))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleTrigger(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		webhookURL, err := request.RequireString("webhook_url")
		if err != nil {
			return mcp.NewToolResultError("webhook_url is required"), nil
		}

		accepted, err := c.trigger(ctx, models.RunRequest{
			Email:    request.GetString("email", ""),
			Password: request.GetString("password", ""),
			Number:   webhookURL,
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("trigger failed: %v", err)), nil
		}

		if !request.GetBool("wait", false) {
			return mcp.NewToolResultText(fmt.Sprintf("Run %s %s.\n%s", accepted.RunID, accepted.Status, accepted.Message)), nil
		}

		waitCtx, cancel := context.WithTimeout(ctx, maxWait)
		defer cancel()
		run, err := c.waitRun(waitCtx, accepted.RunID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("waiting for run %s failed: %v", accepted.RunID, err)), nil
		}
		return mcp.NewToolResultText(formatRun(run)), nil
	}
}

func handleGetRun(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("run_id")
		if err != nil {
			return mcp.NewToolResultError("run_id is required"), nil
		}
		run, err := c.run(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("get run failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatRun(run)), nil
	}
}

// formatRun renders a run for the model.
func formatRun(run models.Run) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s: %s\n", run.ID, run.Status)
	if run.WebhookHost != "" {
		fmt.Fprintf(&b, "Webhook host: %s\n", run.WebhookHost)
	}
	if run.Finished() {
		fmt.Fprintf(&b, "Processed: %d, with phone number: %d, failed: %d\n", run.Processed, run.Resolved, run.Failed)
		fmt.Fprintf(&b, "Webhook delivered: %t\n", run.Delivered)
	}
	if run.StartedAt != nil && run.FinishedAt != nil {
		fmt.Fprintf(&b, "Duration: %s\n", run.FinishedAt.Sub(*run.StartedAt).Round(time.Second))
	}
	if run.Error != nil {
		fmt.Fprintf(&b, "Error: [%s] %s\n", run.Error.Code, run.Error.Message)
	}
	return strings.TrimRight(b.String(), "\n")
}
