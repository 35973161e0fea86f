package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `opsdash aggregates the project and issue reports into one metric bundle.

Core concepts:
- Bundle: every metric computed from one consistent snapshot of the filtered records. It carries an id and a generation time.
- Sections: projectVolume, turnaroundTimes, statusOverview, executionMetrics, timelineAnalytics, resourceUtilization, distribution, geographic, trends, defects, quality, compliance, riskDistribution, riskTrend, topRiskFactors.
- Not available: a metric whose denominator is zero is null, never 0.
- Degraded: the report store failed and the last cached bundle (under an hour old) is being served.

Workflow:
1) Read: get_metrics (whole bundle) or get_metrics with section for one chart.
2) Narrow: set_filter with key dateRange (start, end as YYYY-MM-DD, inclusive), status or region (values). Setting a key again replaces it. clear_filter removes it.
3) Zoom: set_granularity daily, weekly, monthly, quarterly or yearly.
4) Refresh: refresh_dashboard re-reads the reports. Only one refresh runs at a time.
5) Export: export_summary returns the headline numbers and the export file name.

Docs:
- opsdash://docs/metrics (definitions and thresholds)
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "opsdash://docs/metrics",
		Name:        "metrics",
		Title:       "Metric definitions",
		Description: "How each dashboard metric is derived",
		Content: `# Metric definitions

## Rates
All rates are percentages in [0,100]. A rate with an empty denominator is null.

- onTimeDelivery: delivered projects whose delivery date is on or before the planned date.
- budgetAdherence: projects with a planned budget whose actual cost is within it.
- completionRate: completed projects over all projects.
- successRate: completed projects with quality score of at least 90.
- compliance: on time, within budget and quality of at least 70.

## Turnaround
Whole days from start date to completion date, completed projects only.

## Risk
Weighted score in [0,100]: timeline 30%, budget 25%, complexity 20%, dependencies 15%, resources 10%.
High is 75 and above, medium 40 and above, low below 40.

## Timelines
Period labels: YYYY-MM-DD for days, YYYY-Www for ISO weeks, YYYY-MM for months, YYYY-Qn for quarters, YYYY for years.
Counts in empty periods are zero. Averages carry the last observed value forward and are null before the first observation.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		doc := doc

		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
