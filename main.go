package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/orian/spoolplan/models"
)

// maxUploadBytes caps uploaded files. Sliced multi-plate projects run to a
// few hundred megabytes of G-code.
const maxUploadBytes = 512 << 20

// Server handles HTTP requests and coordinates between parse jobs,
// storage and the optional analytics sink.
type Server struct {
	storage   models.Storage
	jobs      *JobManager
	analytics *AnalyticsSink
}

func NewServer(storage models.Storage, jobs *JobManager, analytics *AnalyticsSink) *Server {
	return &Server{
		storage:   storage,
		jobs:      jobs,
		analytics: analytics,
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "multipart field 'file' required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := s.jobs.Start(header.Filename, data)
	log.Printf("Started parse job %s for %s (%d bytes, %s)", job.ID, job.FileName, len(data), job.SourceKind)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":         job.ID,
		"state":      JobRunning,
		"fileName":   job.FileName,
		"sourceKind": job.SourceKind,
	})
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	analyses, err := s.storage.GetAnalyses()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, analyses)
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "analysisId")

	if job, ok := s.jobs.Get(id); ok {
		state, progress, analysis, jobErr := job.Snapshot()
		resp := map[string]interface{}{
			"id":    id,
			"state": state,
		}
		switch state {
		case JobRunning:
			resp["progress"] = progress
		case JobDone:
			resp["analysis"] = analysis
		case JobFailed:
			resp["error"] = jobErr.Error()
		}
		writeJSON(w, resp)
		return
	}

	analysis, ok := s.storage.GetAnalysis(id)
	if !ok {
		http.Error(w, "analysis not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]interface{}{
		"id":       id,
		"state":    JobDone,
		"analysis": analysis,
	})
}

func (s *Server) handleCancelAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "analysisId")

	if job, ok := s.jobs.Get(id); ok {
		state, _, _, _ := job.Snapshot()
		if state == JobRunning {
			job.Cancel()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{"state": string(JobCancelled)})
			return
		}
	}

	if err := s.storage.DeleteAnalysis(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.jobs.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

// getCompletedAnalysis resolves an analysis either from a finished job or
// from storage.
func (s *Server) getCompletedAnalysis(id string) (*models.Analysis, bool) {
	if job, ok := s.jobs.Get(id); ok {
		state, _, analysis, _ := job.Snapshot()
		if state == JobDone {
			return analysis, true
		}
		if state == JobRunning {
			return nil, false
		}
	}
	return s.storage.GetAnalysis(id)
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "analysisId")

	var req PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	analysis, ok := s.getCompletedAnalysis(id)
	if !ok {
		http.Error(w, "analysis not found or still parsing", http.StatusNotFound)
		return
	}

	plan, err := computePlan(analysis, &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.storage.SavePlan(plan); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	log.Printf("Computed %s plan %s for analysis %s: %d swaps across %d slots",
		plan.Strategy, plan.ID, analysis.ID, len(plan.Result.ManualSwaps), plan.Result.TotalSlots)

	if s.analytics != nil {
		go s.analytics.RecordPlan(context.Background(), plan)
	}

	writeJSON(w, plan)
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "analysisId")
	plans, err := s.storage.GetPlansForAnalysis(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, plans)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "planId")
	plan, ok := s.storage.GetPlan(id)
	if !ok {
		http.Error(w, "plan not found", http.StatusNotFound)
		return
	}
	writeJSON(w, plan)
}

func (s *Server) handleExportPlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "planId")
	plan, ok := s.storage.GetPlan(id)
	if !ok {
		http.Error(w, "plan not found", http.StatusNotFound)
		return
	}
	analysis, ok := s.getCompletedAnalysis(plan.AnalysisID)
	if !ok {
		http.Error(w, "analysis for plan not found", http.StatusNotFound)
		return
	}
	writeJSON(w, buildPlanExport(analysis, plan))
}

func (s *Server) handleImportPlan(w http.ResponseWriter, r *http.Request) {
	var exp models.PlanExport
	if err := json.NewDecoder(r.Body).Decode(&exp); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := recomputeFromExport(&exp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]interface{}{
		"colors": exp.Colors,
		"result": result,
	})
}

func (s *Server) handleGetAnalysisTags(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "analysisId")

	tags, err := s.storage.GetAnalysisTags(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, tags)
}

func (s *Server) handleAddTag(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "analysisId")

	var req struct {
		Tag string `json:"tag"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tag, err := s.storage.AddTag(id, req.Tag)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, tag)
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	tagID := chi.URLParam(r, "tagId")

	if err := s.storage.RemoveTag(tagID); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleStar(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "analysisId")

	isStarred, err := s.storage.ToggleStarred(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]bool{"starred": isStarred})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"timestamp": time.Now().Unix(),
		"analytics": false,
	}

	if s.analytics != nil {
		err := s.analytics.Ping(r.Context())
		response["analytics"] = err == nil
		if err != nil {
			log.Printf("ClickHouse ping failed: %v", err)
		}
	}

	writeJSON(w, response)
}

func maskPassword(password string) string {
	if len(password) <= 2 {
		if password == "" {
			return "<empty>"
		}
		return password
	}
	return string(password[0]) + strings.Repeat("*", len(password)-2) + string(password[len(password)-1])
}

// connectAnalytics opens the optional ClickHouse sink. Returns nil when no
// host is configured.
func connectAnalytics() *AnalyticsSink {
	chHost := os.Getenv("CLICKHOUSE_HOST")
	if chHost == "" {
		log.Println("CLICKHOUSE_HOST not set, fleet analytics disabled")
		return nil
	}

	chUser := os.Getenv("CLICKHOUSE_USER")
	chPassword := os.Getenv("CLICKHOUSE_PASSWORD")
	chDatabase := os.Getenv("CLICKHOUSE_DATABASE")
	if chUser == "" {
		chUser = "default"
	}
	if chDatabase == "" {
		chDatabase = "default"
	}

	// Detect if we need secure connection (port 9440 or CLICKHOUSE_SECURE=true)
	useSecure := strings.Contains(chHost, ":9440") || os.Getenv("CLICKHOUSE_SECURE") == "true"

	log.Println("=== ClickHouse Connection Details ===")
	log.Printf("Host: %s", chHost)
	log.Printf("Database: %s", chDatabase)
	log.Printf("User: %s", chUser)
	log.Printf("Password: %s", maskPassword(chPassword))
	log.Printf("Secure: %v", useSecure)
	log.Println("=====================================")

	options := &clickhouse.Options{
		Addr: []string{chHost},
		Auth: clickhouse.Auth{
			Database: chDatabase,
			Username: chUser,
			Password: chPassword,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{
				{Name: "spoolplan", Version: "1.0"},
			},
		},
		Debug: false,
		Settings: clickhouse.Settings{
			"send_logs_level": "none",
		},
	}
	if useSecure {
		options.TLS = &tls.Config{
			InsecureSkipVerify: true,
		}
		log.Printf("Using secure connection to ClickHouse (TLS enabled, accepting invalid certificates)")
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		log.Printf("Warning: failed to connect to ClickHouse, analytics disabled: %v", err)
		return nil
	}

	sink := NewAnalyticsSink(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sink.EnsureSchema(ctx); err != nil {
		log.Printf("Warning: failed to create analytics schema, analytics disabled: %v", err)
		return nil
	}
	log.Println("Successfully connected to ClickHouse, fleet analytics enabled")
	return sink
}

func main() {
	analytics := connectAnalytics()

	// Initialize DuckDB storage
	dbPath := os.Getenv("DUCKDB_PATH")
	if dbPath == "" {
		dbPath = "./spoolplan.db"
	}
	storage, err := NewDuckDBStorage(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer storage.Close()
	log.Printf("DuckDB storage initialized at: %s", dbPath)

	jobs := NewJobManager(storage, func(a *models.Analysis) {
		if analytics != nil {
			analytics.RecordAnalysis(context.Background(), a)
		}
	})

	server := NewServer(storage, jobs, analytics)
	r := server.routes()

	// Static files
	r.Handle("/*", http.FileServer(http.Dir("./static")))

	addr := os.Getenv("SPOOLPLAN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	log.Printf("Starting server on %s", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// routes builds the chi router for the API surface.
func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Analyses
		r.Get("/analyses", s.handleListAnalyses)
		r.Post("/analyses", s.handleUpload)

		r.Route("/analyses/{analysisId}", func(r chi.Router) {
			r.Get("/", s.handleGetAnalysis)
			r.Delete("/", s.handleCancelAnalysis)
			r.Post("/optimize", s.handleOptimize)
			r.Get("/plans", s.handleListPlans)
			r.Get("/tags", s.handleGetAnalysisTags)
			r.Post("/tags", s.handleAddTag)
			r.Post("/star", s.handleToggleStar)
		})

		// Plans
		r.Get("/plans/{planId}", s.handleGetPlan)
		r.Get("/plans/{planId}/export", s.handleExportPlan)
		r.Post("/plans/import", s.handleImportPlan)

		// Tag deletion
		r.Delete("/tags/{tagId}", s.handleDeleteTag)

		r.Get("/server/ping", s.handlePing)
	})

	return r
}
