package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/opsdash/internal/domain/activity"
	"github.com/rpggio/opsdash/internal/domain/dashboard"
	"github.com/rpggio/opsdash/internal/domain/export"
	"github.com/rpggio/opsdash/internal/domain/metrics"
	"github.com/rpggio/opsdash/internal/domain/timeseries"
)

var errUnknownSection = errors.New("unknown metric section")

type GetMetricsParams struct {
	Section string `json:"section,omitempty" jsonschema:"one sub-metric name; omit for the whole bundle"`
}

type SetFilterParams struct {
	Key    string   `json:"key" jsonschema:"dateRange, status or region"`
	Start  string   `json:"start,omitempty" jsonschema:"first day of a dateRange filter, YYYY-MM-DD"`
	End    string   `json:"end,omitempty" jsonschema:"last day of a dateRange filter, YYYY-MM-DD, inclusive"`
	Values []string `json:"values,omitempty" jsonschema:"accepted values of a status or region filter"`
}

type ClearFilterParams struct {
	Key string `json:"key" jsonschema:"filter key to remove"`
}

type SetGranularityParams struct {
	Granularity string `json:"granularity" jsonschema:"daily, weekly, monthly, quarterly or yearly"`
}

type RecentActivityParams struct {
	Type  string `json:"type,omitempty" jsonschema:"only entries of this activity type"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum entries, default 50"`
}

type EmptyParams struct{}

// MetricsResponse is the result of get_metrics and of every tool that
// recomputes the bundle.
type MetricsResponse struct {
	Degraded    bool                   `json:"degraded"`
	Filters     []string               `json:"filters"`
	Granularity timeseries.Granularity `json:"granularity"`
	BundleID    string                 `json:"bundle_id,omitempty"`
	Section     string                 `json:"section,omitempty"`
	Data        any                    `json:"data,omitempty"`
}

type ExportSummaryResponse struct {
	BundleID string           `json:"bundle_id"`
	FileName string           `json:"file_name"`
	Scalars  []metrics.Scalar `json:"scalars"`
	Tables   []string         `json:"tables"`
}

type toolHandlers struct {
	services Services
	now      func() time.Time
}

func registerTools(server *sdkmcp.Server, services Services) {
	h := &toolHandlers{services: services, now: time.Now}

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_metrics",
		Description: "Get the current metric bundle, or one section of it",
	}, h.getMetrics)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "refresh_dashboard",
		Description: "Re-read both reports and recompute every metric",
	}, h.refresh)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "set_filter",
		Description: "Register or replace a record filter and recompute",
	}, h.setFilter)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "clear_filter",
		Description: "Remove a record filter and recompute",
	}, h.clearFilter)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "set_granularity",
		Description: "Change the timeline period size and recompute",
	}, h.setGranularity)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "export_summary",
		Description: "Get the headline numbers of the export and its file name",
	}, h.exportSummary)
	if services.Activity != nil {
		sdkmcp.AddTool(server, &sdkmcp.Tool{
			Name:        "recent_activity",
			Description: "List recent refresh and filter events, newest first",
		}, h.recentActivity)
	}
}

func (h *toolHandlers) getMetrics(_ context.Context, _ *sdkmcp.CallToolRequest, in GetMetricsParams) (*sdkmcp.CallToolResult, any, error) {
	b, degraded := h.services.Dashboard.Current()
	if b == nil {
		return errorResult(dashboard.ErrNoData)
	}
	resp := h.metricsResponse(b, degraded)
	if in.Section != "" {
		data, ok := b.Series(in.Section)
		if !ok {
			return errorResult(fmt.Errorf("%w: %s", errUnknownSection, in.Section))
		}
		resp.Section = in.Section
		resp.Data = data
	}
	return jsonResult(resp)
}

func (h *toolHandlers) refresh(ctx context.Context, _ *sdkmcp.CallToolRequest, _ EmptyParams) (*sdkmcp.CallToolResult, any, error) {
	res, err := h.services.Dashboard.Refresh(ctx)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(res)
}

func (h *toolHandlers) setFilter(ctx context.Context, _ *sdkmcp.CallToolRequest, in SetFilterParams) (*sdkmcp.CallToolResult, any, error) {
	b, err := h.services.Dashboard.ApplyFilter(ctx, in.Key, dashboard.FilterSpec{Start: in.Start, End: in.End, Values: in.Values})
	if err != nil {
		return errorResult(err)
	}
	return h.recomputed(b)
}

func (h *toolHandlers) clearFilter(ctx context.Context, _ *sdkmcp.CallToolRequest, in ClearFilterParams) (*sdkmcp.CallToolResult, any, error) {
	b, err := h.services.Dashboard.ClearFilter(ctx, in.Key)
	if err != nil {
		return errorResult(err)
	}
	return h.recomputed(b)
}

func (h *toolHandlers) setGranularity(ctx context.Context, _ *sdkmcp.CallToolRequest, in SetGranularityParams) (*sdkmcp.CallToolResult, any, error) {
	b, err := h.services.Dashboard.SetGranularity(ctx, timeseries.Granularity(in.Granularity))
	if err != nil {
		return errorResult(err)
	}
	return h.recomputed(b)
}

func (h *toolHandlers) exportSummary(_ context.Context, _ *sdkmcp.CallToolRequest, _ EmptyParams) (*sdkmcp.CallToolResult, any, error) {
	b, _ := h.services.Dashboard.Current()
	if b == nil {
		return errorResult(dashboard.ErrNoData)
	}
	tables := export.Tables(b)
	summary, err := export.Find(tables, export.TableSummary)
	if err != nil {
		return errorResult(err)
	}
	scalars, err := export.ImportSummary(summary)
	if err != nil {
		return errorResult(err)
	}
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		names = append(names, t.Name)
	}
	return jsonResult(ExportSummaryResponse{
		BundleID: b.ID,
		FileName: export.FileName(h.now()) + ".xlsx",
		Scalars:  scalars,
		Tables:   names,
	})
}

func (h *toolHandlers) recentActivity(ctx context.Context, _ *sdkmcp.CallToolRequest, in RecentActivityParams) (*sdkmcp.CallToolResult, any, error) {
	opts := activity.ListActivityOptions{Limit: in.Limit}
	if in.Type != "" {
		typ := activity.ActivityType(in.Type)
		opts.ActivityType = &typ
	}
	entries, err := h.services.Activity.GetRecentActivity(ctx, opts)
	if err != nil {
		return errorResult(err)
	}
	if entries == nil {
		entries = []activity.ActivityEntry{}
	}
	return jsonResult(map[string]any{"entries": entries})
}

// recomputed answers a filter or granularity change; before the first
// refresh there is no bundle yet.
func (h *toolHandlers) recomputed(b *metrics.Bundle) (*sdkmcp.CallToolResult, any, error) {
	if b == nil {
		return jsonResult(MetricsResponse{
			Filters:     h.services.Dashboard.Filters(),
			Granularity: h.services.Dashboard.Granularity(),
		})
	}
	_, degraded := h.services.Dashboard.Current()
	return jsonResult(h.metricsResponse(b, degraded))
}

func (h *toolHandlers) metricsResponse(b *metrics.Bundle, degraded bool) MetricsResponse {
	return MetricsResponse{
		Degraded:    degraded,
		Filters:     h.services.Dashboard.Filters(),
		Granularity: b.Granularity,
		BundleID:    b.ID,
		Data:        b,
	}
}

func jsonResult(v any) (*sdkmcp.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return errorResult(err)
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}, nil, nil
}

func errorResult(err error) (*sdkmcp.CallToolResult, any, error) {
	apiErr := MapError(err)
	data, _ := json.Marshal(apiErr)
	return &sdkmcp.CallToolResult{
		IsError: true,
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}, nil, nil
}
