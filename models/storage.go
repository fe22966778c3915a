package models

// Storage defines the persistence layer for spoolplan.
//
// It provides methods for managing analyses (parsed G-code statistics),
// plans (computed slot assignments), and analysis tags. The primary
// implementation is DuckDBStorage which uses DuckDB for local persistent
// storage.
//
// The interface is organized into three categories:
//   - Analysis management: SaveAnalysis, GetAnalysis, GetAnalyses, DeleteAnalysis
//   - Plan management: SavePlan, GetPlan, GetPlansForAnalysis
//   - Tag management: AddTag, RemoveTag, GetAnalysisTags, ToggleStarred
//
// Thread Safety: Implementations should be safe for concurrent use.
type Storage interface {
	// SaveAnalysis persists a completed analysis. The analysis ID must be
	// set before calling.
	SaveAnalysis(a *Analysis) error

	// GetAnalysis retrieves an analysis by ID, including its tags.
	//
	// Returns the analysis and true if found, nil and false otherwise.
	GetAnalysis(id string) (*Analysis, bool)

	// GetAnalyses returns all analyses ordered by creation time (newest
	// first). Stats are included; use GetAnalysis for tags.
	GetAnalyses() ([]*Analysis, error)

	// DeleteAnalysis removes an analysis and its plans and tags.
	DeleteAnalysis(id string) error

	// SavePlan persists an optimization run. The plan's ID and AnalysisID
	// must be set before calling.
	SavePlan(p *Plan) error

	// GetPlan retrieves a plan by ID.
	//
	// Returns the plan and true if found, nil and false otherwise.
	GetPlan(id string) (*Plan, bool)

	// GetPlansForAnalysis returns all plans computed for an analysis,
	// newest first.
	GetPlansForAnalysis(analysisID string) ([]*Plan, error)

	// AddTag adds a tag to an analysis.
	//
	// Tag format can be:
	//   - Simple tag: "tagname" (e.g., "benchy", "multi-color")
	//   - Key-value tag: "key=value" (e.g., "printer=x1c")
	//
	// System tags (prefixed with "system:") are reserved for internal use.
	//
	// Returns the created tag, or an error if the tag already exists on
	// this analysis.
	AddTag(analysisID, tag string) (*AnalysisTag, error)

	// RemoveTag removes a tag by its ID.
	//
	// Returns an error if the tag doesn't exist.
	RemoveTag(tagID string) error

	// GetAnalysisTags returns all tags for a specific analysis.
	GetAnalysisTags(analysisID string) ([]*AnalysisTag, error)

	// ToggleStarred toggles the "system:starred" tag on an analysis.
	// Returns the new starred state (true if now starred).
	ToggleStarred(analysisID string) (bool, error)

	// Close releases any resources held by the storage.
	//
	// After Close is called, the storage should not be used.
	Close() error
}
