package main

import (
	"context"
	"log"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/orian/spoolplan/models"
)

// AnalyticsSink ships per-print telemetry to ClickHouse for fleet-level
// reporting across a print farm. The sink is optional: when no ClickHouse
// endpoint is configured the service runs without it, and sink failures
// never fail the analysis that triggered them.
type AnalyticsSink struct {
	conn driver.Conn
}

// NewAnalyticsSink creates a sink over an open connection.
func NewAnalyticsSink(conn driver.Conn) *AnalyticsSink {
	return &AnalyticsSink{conn: conn}
}

// EnsureSchema creates the telemetry tables if missing.
func (a *AnalyticsSink) EnsureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS spoolplan_analyses (
			analysis_id String,
			file_name String,
			source_kind String,
			slicer String,
			total_layers UInt32,
			total_height Float64,
			color_count UInt16,
			tool_changes UInt32,
			parse_ms Float64,
			created_at DateTime
		) ENGINE = MergeTree ORDER BY (created_at, analysis_id)`,
		`CREATE TABLE IF NOT EXISTS spoolplan_plans (
			plan_id String,
			analysis_id String,
			strategy String,
			total_slots UInt16,
			required_slots UInt16,
			manual_swaps UInt16,
			time_saved_s Float64,
			created_at DateTime
		) ENGINE = MergeTree ORDER BY (created_at, plan_id)`,
	}
	for _, q := range ddl {
		if err := a.conn.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// RecordAnalysis inserts one row per completed analysis. Errors are
// logged, not propagated: telemetry must never break the primary path.
func (a *AnalyticsSink) RecordAnalysis(ctx context.Context, analysis *models.Analysis) {
	stats := analysis.Stats
	if stats == nil {
		return
	}
	slicer := ""
	if stats.SlicerInfo != nil {
		slicer = stats.SlicerInfo.Software
	}
	err := a.conn.Exec(ctx,
		`INSERT INTO spoolplan_analyses
			(analysis_id, file_name, source_kind, slicer, total_layers, total_height, color_count, tool_changes, parse_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		analysis.ID, analysis.FileName, analysis.SourceKind, slicer,
		uint32(stats.TotalLayers), stats.TotalHeight,
		uint16(len(stats.Colors)), uint32(len(stats.ToolChanges)),
		stats.ParseTime, analysis.CreatedAt,
	)
	if err != nil {
		log.Printf("Analytics: failed to record analysis %s: %v", analysis.ID, err)
	}
}

// RecordPlan inserts one row per computed swap plan.
func (a *AnalyticsSink) RecordPlan(ctx context.Context, plan *models.Plan) {
	if plan.Result == nil {
		return
	}
	err := a.conn.Exec(ctx,
		`INSERT INTO spoolplan_plans
			(plan_id, analysis_id, strategy, total_slots, required_slots, manual_swaps, time_saved_s, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		plan.ID, plan.AnalysisID, string(plan.Strategy),
		uint16(plan.Result.TotalSlots), uint16(plan.Result.RequiredSlots),
		uint16(len(plan.Result.ManualSwaps)), plan.Result.EstimatedTimeSaved,
		plan.CreatedAt,
	)
	if err != nil {
		log.Printf("Analytics: failed to record plan %s: %v", plan.ID, err)
	}
}

// Ping checks connectivity with a short timeout.
func (a *AnalyticsSink) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return a.conn.Ping(ctx)
}
