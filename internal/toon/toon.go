// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/misfinder/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts run reports into TOON format: one table of repositories,
// one of detector results and one of findings.
func Encode(reports []model.RepoReport) string {
	var parts []string

	var reportRows [][]string
	for i := range reports {
		r := &reports[i]
		reportRows = append(reportRows, []string{
			r.Repo,
			string(r.Provider),
			strconv.Itoa(r.Files),
			strconv.Itoa(r.ParseFailures),
			strconv.Itoa(r.Total()),
			yesNo(r.Cached),
			r.Err,
		})
	}
	parts = append(parts, formatTabular("reports",
		[]string{"repo", "provider", "files", "parse_failures", "findings", "cached", "error"}, reportRows))

	var resultRows [][]string
	for i := range reports {
		for j := range reports[i].Results {
			res := &reports[i].Results[j]
			resultRows = append(resultRows, []string{
				reports[i].Repo,
				res.Detector,
				strconv.Itoa(res.Count),
				strings.Join(res.Notes, "; "),
			})
		}
	}
	parts = append(parts, formatTabular("results", []string{"repo", "detector", "count", "notes"}, resultRows))

	var findingRows [][]string
	for i := range reports {
		for j := range reports[i].Results {
			res := &reports[i].Results[j]
			for k := range res.Findings {
				f := &res.Findings[k]
				line := ""
				if f.Location.Line > 0 {
					line = strconv.Itoa(f.Location.Line)
				}
				findingRows = append(findingRows, []string{
					reports[i].Repo,
					res.Detector,
					string(f.Kind),
					f.Location.File,
					line,
					f.Caller,
					f.Callee,
					f.Message,
				})
			}
		}
	}
	parts = append(parts, formatTabular("findings",
		[]string{"repo", "detector", "kind", "file", "line", "caller", "callee", "message"}, findingRows))

	return strings.Join(parts, "\n")
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
