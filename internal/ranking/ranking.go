// Package ranking orders findings and trims reports for display.
package ranking

import (
	"fmt"
	"sort"
	"strings"

	"github.com/phobologic/misfinder/internal/model"
)

// kindPriority ranks finding kinds; lower sorts first. Direct evidence of a
// per-item network call outranks inferred and repository-level findings.
var kindPriority = map[model.FindingKind]int{
	model.DirectSingularInLoop:     0,
	model.TransitiveBatchViolation: 1,
	model.KeywordArgumentInLoop:    2,
	model.OutputFieldMisuse:        3,
	model.SchemaMismatchBlindness:  4,
	model.MissingCheckpointing:     5,
	model.MissingEarlyStopping:     6,
	model.MissingRateLimitMonitor:  7,
	model.MissingDriftMonitoring:   8,
}

func priority(k model.FindingKind) int {
	if p, ok := kindPriority[k]; ok {
		return p
	}
	return len(kindPriority)
}

// Less reports whether a ranks before b: by kind priority, then file, line,
// caller and callee.
func Less(a, b *model.Finding) bool {
	if pa, pb := priority(a.Kind), priority(b.Kind); pa != pb {
		return pa < pb
	}
	if a.Location.File != b.Location.File {
		return a.Location.File < b.Location.File
	}
	if a.Location.Line != b.Location.Line {
		return a.Location.Line < b.Location.Line
	}
	if a.Caller != b.Caller {
		return a.Caller < b.Caller
	}
	return a.Callee < b.Callee
}

// Order returns a ranked copy of findings. The sort is stable.
func Order(findings []model.Finding) []model.Finding {
	out := make([]model.Finding, len(findings))
	copy(out, findings)
	sort.SliceStable(out, func(i, j int) bool { return Less(&out[i], &out[j]) })
	return out
}

type ranked struct {
	result  int
	finding *model.Finding
}

// SelectFindings returns a new RepoReport keeping only the top-ranked
// maxFindings findings across all detectors. Counts keep the number of
// findings detected; trimmed results gain a note. If maxFindings is <= 0
// or the report has no more than maxFindings findings, rep is returned.
func SelectFindings(rep *model.RepoReport, maxFindings int) *model.RepoReport {
	if maxFindings <= 0 || maxFindings >= shown(rep) {
		return rep
	}

	var all []ranked
	for i := range rep.Results {
		for j := range rep.Results[i].Findings {
			all = append(all, ranked{result: i, finding: &rep.Results[i].Findings[j]})
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return Less(all[i].finding, all[j].finding) })

	kept := make([][]model.Finding, len(rep.Results))
	for _, r := range all[:maxFindings] {
		kept[r.result] = append(kept[r.result], *r.finding)
	}

	out := *rep
	out.Results = make([]model.Result, len(rep.Results))
	for i, res := range rep.Results {
		trimmed := res
		trimmed.Findings = Order(kept[i])
		if len(trimmed.Findings) < len(res.Findings) {
			trimmed.Notes = append(append([]string(nil), res.Notes...),
				fmt.Sprintf("showing %d of %d findings", len(trimmed.Findings), len(res.Findings)))
		}
		out.Results[i] = trimmed
	}
	return &out
}

// FilterByFile returns a new RepoReport containing only findings whose file
// path contains substr (case-insensitive). Repository-level findings, which
// have no file, are dropped.
func FilterByFile(rep *model.RepoReport, substr string) *model.RepoReport {
	lower := strings.ToLower(substr)
	return filter(rep, func(f *model.Finding) bool {
		return f.Location.File != "" && strings.Contains(strings.ToLower(f.Location.File), lower)
	})
}

// FilterByKind returns a new RepoReport containing only findings of the
// given kinds.
func FilterByKind(rep *model.RepoReport, kinds []model.FindingKind) *model.RepoReport {
	want := make(map[model.FindingKind]struct{}, len(kinds))
	for _, k := range kinds {
		want[k] = struct{}{}
	}
	return filter(rep, func(f *model.Finding) bool {
		_, ok := want[f.Kind]
		return ok
	})
}

func filter(rep *model.RepoReport, keep func(*model.Finding) bool) *model.RepoReport {
	out := *rep
	out.Results = make([]model.Result, len(rep.Results))
	for i, res := range rep.Results {
		filtered := res
		filtered.Findings = []model.Finding{}
		for j := range res.Findings {
			if keep(&res.Findings[j]) {
				filtered.Findings = append(filtered.Findings, res.Findings[j])
			}
		}
		filtered.Count = len(filtered.Findings)
		out.Results[i] = filtered
	}
	return &out
}

func shown(rep *model.RepoReport) int {
	n := 0
	for i := range rep.Results {
		n += len(rep.Results[i].Findings)
	}
	return n
}
