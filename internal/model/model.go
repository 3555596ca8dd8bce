// Package model defines core data structures for misfinder.
package model

import "fmt"

// Provider is the cloud ML vendor inferred from a repository's imports.
type Provider string

const (
	Azure   Provider = "azure"
	Google  Provider = "google"
	AWS     Provider = "aws"
	Unknown Provider = "unknown"
)

// FindingKind identifies which rule produced a finding.
type FindingKind string

const (
	DirectSingularInLoop     FindingKind = "direct-singular-in-loop"
	TransitiveBatchViolation FindingKind = "transitive-batch-violation"
	KeywordArgumentInLoop    FindingKind = "keyword-argument-in-loop"

	MissingDriftMonitoring  FindingKind = "missing-drift-monitoring"
	MissingEarlyStopping    FindingKind = "missing-early-stopping"
	MissingCheckpointing    FindingKind = "missing-checkpoint-restore"
	SchemaMismatchBlindness FindingKind = "schema-mismatch-blindness"
	MissingRateLimitMonitor FindingKind = "missing-rate-limit-monitoring"
	OutputFieldMisuse       FindingKind = "output-field-misuse"
)

// FindingKinds returns every finding kind in declaration order.
func FindingKinds() []FindingKind {
	return []FindingKind{
		DirectSingularInLoop, TransitiveBatchViolation, KeywordArgumentInLoop,
		MissingDriftMonitoring, MissingEarlyStopping, MissingCheckpointing,
		SchemaMismatchBlindness, MissingRateLimitMonitor, OutputFieldMisuse,
	}
}

// ModuleScope is the caller name used for findings outside any function.
const ModuleScope = "<module>"

// SourceFile is one discovered file: its repository-relative path and raw
// contents.
type SourceFile struct {
	Path string
	Text []byte
}

// Location is a position in a repository-relative source file.
type Location struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

func (l Location) String() string {
	if l.File == "" {
		return "<repository>"
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Finding is a structured record flagging one suspected anti-pattern.
type Finding struct {
	Kind     FindingKind `json:"kind"`
	Location Location    `json:"location"`
	Caller   string      `json:"caller"`
	Callee   string      `json:"callee"`
	Message  string      `json:"message"`
}

// Key is the identity used for deduplication.
type Key struct {
	Kind     FindingKind
	Location Location
	Caller   string
	Callee   string
}

// Key returns the deduplication identity of f.
func (f Finding) Key() Key {
	return Key{Kind: f.Kind, Location: f.Location, Caller: f.Caller, Callee: f.Callee}
}

// Result is the uniform output of a single detector.
type Result struct {
	Detector string    `json:"detector"`
	Count    int       `json:"count"`
	Findings []Finding `json:"findings"`
	Notes    []string  `json:"notes,omitempty"`
}

// RepoReport is one row of the run report: every detector's result for a
// single repository.
type RepoReport struct {
	Repo          string   `json:"repo"`
	Provider      Provider `json:"provider"`
	Files         int      `json:"files"`
	ParseFailures int      `json:"parse_failures"`
	Results       []Result `json:"results"`
	Err           string   `json:"error,omitempty"`
	Cached        bool     `json:"cached,omitempty"`
}

// Total returns the number of findings across all detectors.
func (r *RepoReport) Total() int {
	n := 0
	for i := range r.Results {
		n += r.Results[i].Count
	}
	return n
}
