package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// snapshot mirrors the rcvscrap status model.
type snapshot struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	State        string    `json:"state"`
	Message      string    `json:"message"`
	Processed    []string  `json:"categories_processed"`
	Unavailable  []string  `json:"categories_unavailable"`
	TotalRecords int       `json:"total_records"`
	Error        *apiError `json:"error"`
}

// apiError mirrors the rcvscrap error detail.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorResponse mirrors the rcvscrap error envelope.
type errorResponse struct {
	Success bool      `json:"success"`
	Error   *apiError `json:"error"`
}

func main() {
	apiURL := os.Getenv("RCV_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("RCV_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "RCV_API_KEY is required")
		os.Exit(1)
	}

	client := newClient(apiURL, apiKey)

	s := server.NewMCPServer(
		"rcvscrap",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	startTool := mcp.NewTool("start_extraction",
		mcp.WithDescription("Start extracting the SII purchase/sales ledger (Registro de Compras y Ventas). Runs in the background; only one extraction runs at a time."),
		mcp.WithNumber("month",
			mcp.Description("Month to extract (1-12). Omit both month and year for the portal's current period."),
		),
		mcp.WithNumber("year",
			mcp.Description("Year to extract, e.g. 2025."),
		),
		mcp.WithArray("categories",
			mcp.Description("Document-type codes to extract, e.g. [\"33\", \"61\"]. Default: every category with data."),
		),
		mcp.WithBoolean("wait",
			mcp.Description("Block until the extraction finishes (default: false)."),
		),
	)
	s.AddTool(startTool, handleStartExtraction(client))

	statusTool := mcp.NewTool("extraction_status",
		mcp.WithDescription("Report the status of the current or last extraction."),
	)
	s.AddTool(statusTool, handleExtractionStatus(client))

	recordsTool := mcp.NewTool("get_records",
		mcp.WithDescription("Return the records of the last completed extraction, or of a cached period."),
		mcp.WithString("period",
			mcp.Description("Cached period as YYYY-MM, or 'default'. Omit for the last completed extraction."),
		),
	)
	s.AddTool(recordsTool, handleGetRecords(client))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// newClient returns a resty client bound to the rcvscrap API.
func newClient(apiURL, apiKey string) *resty.Client {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(apiURL, "/"))
	client.SetHeader("X-API-Key", apiKey)
	client.SetTimeout(60 * time.Second)
	return client
}

// call performs a request and decodes a successful body into out.
func call(ctx context.Context, client *resty.Client, method, path string, body, out any) error {
	var failure errorResponse
	req := client.R().
		SetContext(ctx).
		SetResult(out).
		SetError(&failure)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	if resp.IsError() {
		if failure.Error != nil {
			return fmt.Errorf("[%s] %s", failure.Error.Code, failure.Error.Message)
		}
		return fmt.Errorf("API returned %s", resp.Status())
	}
	return nil
}

// pollCompletion polls the status endpoint until the run is no longer running
// or ctx is cancelled.
func pollCompletion(ctx context.Context, client *resty.Client) (*snapshot, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			var snap snapshot
			if err := call(ctx, client, resty.MethodGet, "/api/v1/status", nil, &snap); err != nil {
				return nil, err
			}
			if snap.Status != "running" {
				return &snap, nil
			}
		}
	}
}

func handleStartExtraction(client *resty.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		payload := map[string]any{}
		args := request.GetArguments()
		if month, ok := args["month"]; ok {
			payload["month"] = month
		}
		if year, ok := args["year"]; ok {
			payload["year"] = year
		}
		if _, ok := args["categories"]; ok {
			categories, err := request.RequireStringSlice("categories")
			if err != nil {
				return mcp.NewToolResultError("categories must be an array of strings"), nil
			}
			payload["categories"] = categories
		}

		var snap snapshot
		if err := call(ctx, client, resty.MethodPost, "/api/v1/extract", payload, &snap); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("start failed: %v", err)), nil
		}

		if !request.GetBool("wait", false) {
			return mcp.NewToolResultText(fmt.Sprintf("Extraction %s started: %s", snap.ID, snap.Message)), nil
		}

		final, err := pollCompletion(ctx, client)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling extraction failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatSnapshot(final)), nil
	}
}

func handleExtractionStatus(client *resty.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var snap snapshot
		if err := call(ctx, client, resty.MethodGet, "/api/v1/status", nil, &snap); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("status failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatSnapshot(&snap)), nil
	}
}

func handleGetRecords(client *resty.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path := "/api/v1/records"
		if period := request.GetString("period", ""); period != "" {
			path = "/api/v1/history/" + period
		}

		var out struct {
			Total  int             `json:"total"`
			Result json.RawMessage `json:"result"`
		}
		if err := call(ctx, client, resty.MethodGet, path, nil, &out); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("records request failed: %v", err)), nil
		}

		pretty, err := json.MarshalIndent(out.Result, "", "  ")
		if err != nil {
			pretty = out.Result
		}
		return mcp.NewToolResultText(fmt.Sprintf("Total records: %d\n\n%s", out.Total, pretty)), nil
	}
}

func formatSnapshot(s *snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Extraction %s: %s", s.ID, s.Status)
	if s.State != "" {
		fmt.Fprintf(&sb, " (%s)", s.State)
	}
	fmt.Fprintf(&sb, "\n%s\n", s.Message)
	if len(s.Processed) > 0 {
		fmt.Fprintf(&sb, "Categories: %s\n", strings.Join(s.Processed, ", "))
	}
	if len(s.Unavailable) > 0 {
		fmt.Fprintf(&sb, "Unavailable: %s\n", strings.Join(s.Unavailable, ", "))
	}
	fmt.Fprintf(&sb, "Records: %d\n", s.TotalRecords)
	if s.Error != nil {
		fmt.Fprintf(&sb, "Error: [%s] %s\n", s.Error.Code, s.Error.Message)
	}
	return sb.String()
}
