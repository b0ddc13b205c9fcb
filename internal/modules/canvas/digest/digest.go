package digest

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/yungbote/neurocanvas-backend/internal/domain/content"
)

// Input is one already-generated module.
type Input struct {
	Type    string
	Title   string
	Payload content.Payload
}

// FromVersion decodes stored content. Undecodable content yields an Input
// with a nil payload, which summarizes to nothing.
func FromVersion(moduleType, title string, raw []byte) Input {
	in := Input{Type: moduleType, Title: title}
	if len(raw) == 0 {
		return in
	}
	if p, err := content.Decode(raw); err == nil {
		in.Payload = p
	}
	return in
}

type Entry struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

type Digest struct {
	Entries []Entry `json:"entries"`
}

// Budget bounds digest size in runes.
type Budget struct {
	PerModule int
	Total     int
}

var DefaultBudget = Budget{PerModule: 600, Total: 4000}

const formulaExplanationRunes = 200

func Summarize(inputs []Input) Digest {
	return SummarizeWithBudget(inputs, DefaultBudget)
}

// SummarizeWithBudget is deterministic and never fails. A module whose
// content cannot be summarized contributes an empty summary.
func SummarizeWithBudget(inputs []Input, b Budget) Digest {
	if b.PerModule <= 0 {
		b.PerModule = DefaultBudget.PerModule
	}
	if b.Total <= 0 {
		b.Total = DefaultBudget.Total
	}
	out := Digest{Entries: make([]Entry, 0, len(inputs))}
	remaining := b.Total
	for _, in := range inputs {
		s := ""
		if remaining > 0 {
			s = truncate(safeSummary(in, b.PerModule), minInt(b.PerModule, remaining))
			remaining -= utf8.RuneCountInString(s)
		}
		out.Entries = append(out.Entries, Entry{
			Type:    strings.TrimSpace(in.Type),
			Title:   strings.TrimSpace(in.Title),
			Summary: s,
		})
	}
	return out
}

// NonEmpty reports whether any module contributed a summary.
func (d Digest) NonEmpty() bool {
	for _, e := range d.Entries {
		if e.Summary != "" {
			return true
		}
	}
	return false
}

// String renders one line per summarized module for prompt inclusion.
func (d Digest) String() string {
	var b strings.Builder
	for _, e := range d.Entries {
		if e.Summary == "" {
			continue
		}
		fmt.Fprintf(&b, "- [%s] %s: %s\n", e.Type, e.Title, e.Summary)
	}
	return strings.TrimRight(b.String(), "\n")
}

func safeSummary(in Input, per int) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = ""
		}
	}()
	return strings.TrimSpace(summarize(in.Payload, per))
}

func summarize(p content.Payload, per int) string {
	if p == nil || content.IsError(p) || content.IsPlaceholder(p) {
		return ""
	}
	switch v := p.(type) {
	case content.Formula:
		if strings.TrimSpace(v.MainFormula) == "" {
			return ""
		}
		s := "Formula: " + strings.TrimSpace(v.MainFormula)
		if exp := truncate(strings.TrimSpace(v.Explanation), formulaExplanationRunes); exp != "" {
			s += ". " + exp
		}
		return s
	case content.Story:
		s := collapse(v.Narrative)
		if m := strings.TrimSpace(v.Moral); m != "" && utf8.RuneCountInString(s)+len(m) < per {
			s += " Moral: " + m
		}
		return s
	case content.InteractiveApp:
		params := v.Parameters()
		if len(params) == 0 {
			return ""
		}
		parts := make([]string, 0, len(params))
		for _, prm := range params {
			part := fmt.Sprintf("%s %s to %s", prm.Name, formatNum(prm.Min), formatNum(prm.Max))
			if prm.Unit != "" {
				part += " " + prm.Unit
			}
			parts = append(parts, part)
		}
		return "Parameters: " + strings.Join(parts, "; ")
	case content.Quiz:
		stems := make([]string, 0, len(v.Questions))
		for _, q := range v.Questions {
			if s := strings.TrimSpace(q.Question); s != "" {
				stems = append(stems, s)
			}
		}
		if len(stems) == 0 {
			return ""
		}
		return "Questions: " + strings.Join(stems, " | ")
	case content.Text:
		s := collapse(v.Body)
		if sub := strings.TrimSpace(v.Subtitle); sub != "" {
			s = sub + ". " + s
		}
		return s
	case content.Video:
		if strings.TrimSpace(v.VideoURL) == "" {
			return ""
		}
		if tr := collapse(v.Transcript); tr != "" {
			return "Video transcript: " + tr
		}
		return "Video available: " + strings.TrimSpace(v.Title)
	case content.Image:
		if strings.TrimSpace(v.ImageURL) == "" {
			return ""
		}
		if alt := strings.TrimSpace(v.Alt); alt != "" {
			return "Image: " + alt
		}
		return "Image available: " + strings.TrimSpace(v.Title)
	case content.HTMLAnimation:
		if strings.TrimSpace(v.HTMLContent) == "" {
			return ""
		}
		return "Animation: " + strings.TrimSpace(v.Title)
	case content.Raw:
		for _, key := range []string{"summary", "body", "text", "description", "narrative"} {
			if s, ok := v.Fields[key].(string); ok && strings.TrimSpace(s) != "" {
				return collapse(s)
			}
		}
		return ""
	default:
		return ""
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n <= 3 {
		return string(r[:n])
	}
	return strings.TrimSpace(string(r[:n-3])) + "..."
}

func formatNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
