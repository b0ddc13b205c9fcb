package intent

import (
	"strings"
	"unicode"

	"github.com/yungbote/neurocanvas-backend/internal/domain"
)

const (
	shortPromptWords = 3
	longPromptWords  = 6
)

var (
	expandWords = wordSet("add", "more", "show", "explain", "example", "examples", "another", "also",
		"quiz", "test", "elaborate", "expand", "deeper", "detail", "details", "include", "give", "extra")
	// switchWords override expand signals.
	switchWords = wordSet("new", "switch", "instead", "different", "change")
	newWords    = wordSet("about", "learn", "new", "switch", "instead", "topic")

	leadIns = []string{
		"i want to learn about", "i'd like to learn about", "i would like to learn about",
		"let's learn about", "lets learn about", "teach me about", "tell me about",
		"let's talk about", "talk about", "new topic:", "new topic", "switch to", "switch topic to",
		"change topic to", "instead", "learn about", "how about", "what about", "what is", "what are",
		"explain", "learn",
	}

	moduleFamilies = []struct {
		moduleType string
		words      map[string]struct{}
	}{
		{"quiz", wordSet("quiz", "quizzes", "test", "questions", "question", "check")},
		{"examples", wordSet("example", "examples", "instance", "instances", "sample", "samples")},
		{"story", wordSet("story", "stories", "tale", "narrative")},
		{"formula", wordSet("formula", "formulas", "equation", "equations", "math")},
		{"experiment", wordSet("experiment", "experiments", "hands-on", "demo", "lab")},
		{"interactive_app", wordSet("simulation", "simulate", "interactive", "slider", "sliders", "app")},
		{"video", wordSet("video", "videos", "clip", "film", "movie")},
		{"image", wordSet("image", "images", "picture", "pictures", "illustration", "drawing", "diagram")},
		{"html_animation", wordSet("animation", "animate", "animated")},
		{"definition", wordSet("define", "definition", "meaning", "means")},
	}

	domainKeywords = []struct {
		domain domain.CanvasDomain
		words  map[string]struct{}
	}{
		{domain.DomainLanguage, wordSet("word", "words", "grammar", "vocabulary", "verb", "verbs", "noun", "nouns",
			"adjective", "spanish", "french", "german", "english", "japanese", "chinese", "italian", "translate",
			"translation", "pronounce", "pronunciation", "idiom", "idioms", "phrase", "phrases", "spelling", "synonym")},
		{domain.DomainScience, wordSet("physics", "chemistry", "biology", "gravity", "atom", "atoms", "energy",
			"force", "cell", "cells", "planet", "planets", "orbit", "orbits", "molecule", "molecules", "evolution",
			"quantum", "electricity", "magnetism", "photosynthesis", "relativity", "dna", "genetics", "velocity",
			"acceleration", "thermodynamics", "light", "sound", "ecosystem", "volcano", "volcanoes", "math",
			"algebra", "calculus", "geometry", "science", "black", "hole", "holes", "star", "stars")},
		{domain.DomainLiberalArts, wordSet("history", "philosophy", "art", "arts", "literature", "war", "revolution",
			"religion", "politics", "music", "poetry", "poem", "culture", "ethics", "empire", "renaissance",
			"democracy", "economics", "sociology", "mythology", "painting", "novel", "ancient", "medieval")},
	}
)

// Heuristic is the deterministic tier. It assumes a current topic exists.
func Heuristic(prompt, currentTopic string, currentDomain domain.CanvasDomain) Decision {
	if strings.TrimSpace(currentTopic) == "" {
		return newCanvas(prompt, currentDomain, SourceRule)
	}
	words := tokenize(prompt)
	hasExpand := containsAny(words, expandWords)
	hasSwitch := switchSignal(words)
	hasNew := containsAny(words, newWords)

	expand := func() Decision {
		return Decision{
			Action:     ActionExpandCanvas,
			Domain:     currentDomain,
			ModuleType: ModuleTypeFor(prompt),
			Source:     SourceHeuristic,
		}
	}
	switch {
	case hasExpand && !hasSwitch:
		return expand()
	case hasNew:
		return newCanvas(prompt, "", SourceHeuristic)
	case len(words) <= shortPromptWords:
		return newCanvas(prompt, "", SourceHeuristic)
	case len(words) >= longPromptWords:
		return expand()
	default:
		return newCanvas(prompt, "", SourceHeuristic)
	}
}

// ModuleTypeFor maps a prompt to a module type by keyword family.
func ModuleTypeFor(prompt string) string {
	words := tokenize(prompt)
	for _, fam := range moduleFamilies {
		if containsAny(words, fam.words) {
			return fam.moduleType
		}
	}
	return "explanation"
}

// ExtractTopic strips conversational lead-ins and trailing punctuation.
func ExtractTopic(prompt string) string {
	s := strings.TrimSpace(prompt)
	lower := strings.ToLower(s)
	for changed := true; changed; {
		changed = false
		for _, lead := range leadIns {
			if strings.HasPrefix(lower, lead+" ") || strings.HasPrefix(lower, lead+":") || lower == lead {
				s = strings.TrimSpace(s[len(lead):])
				s = strings.TrimLeft(s, ": ")
				lower = strings.ToLower(s)
				changed = true
				break
			}
		}
	}
	s = strings.TrimRightFunc(s, func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSpace(r) })
	if s == "" {
		return strings.TrimSpace(prompt)
	}
	return s
}

// InferDomain keeps fallback when set; otherwise it scores keyword lists.
// Unknown single words are treated as vocabulary.
func InferDomain(topic string, fallback domain.CanvasDomain) domain.CanvasDomain {
	if fallback != "" {
		return fallback
	}
	words := tokenize(topic)
	best, bestScore := domain.CanvasDomain(""), 0
	for _, dk := range domainKeywords {
		score := 0
		for _, w := range words {
			if _, ok := dk.words[w]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = dk.domain, score
		}
	}
	if best != "" {
		return best
	}
	if len(words) == 1 {
		return domain.DomainLanguage
	}
	return domain.DomainScience
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '\'')
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "-'")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// switchSignal ignores "new" or "different" when they qualify a module
// kind, as in "add a new quiz".
func switchSignal(words []string) bool {
	for i, w := range words {
		if _, ok := switchWords[w]; !ok {
			continue
		}
		if i+1 < len(words) && isModuleWord(words[i+1]) {
			continue
		}
		return true
	}
	return false
}

func isModuleWord(w string) bool {
	for _, fam := range moduleFamilies {
		if _, ok := fam.words[w]; ok {
			return true
		}
	}
	return false
}

func containsAny(words []string, set map[string]struct{}) bool {
	for _, w := range words {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

func wordSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
