package models

import "time"

// StatusTotals carries issue counts grouped by lifecycle status.
type StatusTotals struct {
	Total    int `json:"total_issues"`
	Open     int `json:"open_issues"`
	Pending  int `json:"pending_issues"`
	Resolved int `json:"resolved_issues"`
	Closed   int `json:"closed_issues"`
}

// MonthlyTrend is one calendar-month bucket of the dashboard trend series.
// Resolved counts issues created in that month that are currently resolved.
type MonthlyTrend struct {
	Month    string `json:"month"`
	Issues   int    `json:"issues"`
	Resolved int    `json:"resolved"`
}

// RecentActivity is a compact view of a recently updated issue.
type RecentActivity struct {
	ID        string        `db:"id" json:"id"`
	Title     string        `db:"title" json:"title"`
	Status    IssueStatus   `db:"status" json:"status"`
	County    string        `db:"county" json:"county"`
	Ward      string        `db:"ward" json:"ward"`
	Category  IssueCategory `db:"category" json:"category"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// DashboardStats is the aggregate payload behind /analytics/dashboard.
type DashboardStats struct {
	TotalIssues       int              `json:"total_issues"`
	OpenIssues        int              `json:"open_issues"`
	PendingIssues     int              `json:"pending_issues"`
	ResolvedIssues    int              `json:"resolved_issues"`
	ClosedIssues      int              `json:"closed_issues"`
	ResolutionRate    float64          `json:"resolution_rate"`
	CategoryBreakdown map[string]int   `json:"category_breakdown"`
	CountyBreakdown   map[string]int   `json:"county_breakdown"`
	SeverityBreakdown map[string]int   `json:"severity_breakdown"`
	MonthlyTrends     []MonthlyTrend   `json:"monthly_trends"`
	RecentActivity    []RecentActivity `json:"recent_activity"`
}

// CountyStats is a per-county aggregation row.
type CountyStats struct {
	County   string `db:"county" json:"county"`
	Total    int    `db:"total" json:"total"`
	Resolved int    `db:"resolved" json:"resolved"`
	Pending  int    `db:"pending" json:"pending"`
	Open     int    `db:"open" json:"open"`
}

// CategoryStats is a per-category aggregation row.
type CategoryStats struct {
	Category string `db:"category" json:"category"`
	Total    int    `db:"total" json:"total"`
	Resolved int    `db:"resolved" json:"resolved"`
	Pending  int    `db:"pending" json:"pending"`
	Open     int    `db:"open" json:"open"`
	Critical int    `db:"critical" json:"critical"`
	High     int    `db:"high" json:"high"`
}

// DailyTrend is one calendar-day bucket of the trends series.
type DailyTrend struct {
	Date     string `json:"date"`
	Issues   int    `json:"issues"`
	Resolved int    `json:"resolved"`
}
