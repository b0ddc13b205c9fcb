package media

import "strings"

// URLRule finds a media URL in one response shape.
type URLRule struct {
	Name string
	Find func(raw map[string]any) string
}

// URLRules are tried in order; the first non-empty http(s) URL wins.
var URLRules = []URLRule{
	{Name: "video_url", Find: func(raw map[string]any) string { return str(raw["video_url"]) }},
	{Name: "url", Find: func(raw map[string]any) string { return str(raw["url"]) }},
	{Name: "output", Find: func(raw map[string]any) string { return firstURL(raw["output"]) }},
	{Name: "result", Find: func(raw map[string]any) string { return firstURL(raw["result"]) }},
	{Name: "results", Find: func(raw map[string]any) string { return firstURL(raw["results"]) }},
	{Name: "assets.video", Find: func(raw map[string]any) string {
		assets, _ := raw["assets"].(map[string]any)
		return str(assets["video"])
	}},
	{Name: "data", Find: func(raw map[string]any) string { return firstURL(raw["data"]) }},
	{Name: "download_url", Find: func(raw map[string]any) string { return str(raw["download_url"]) }},
}

// ExtractURL returns the URL and the name of the rule that matched.
func ExtractURL(raw map[string]any) (string, string) {
	if raw == nil {
		return "", ""
	}
	for _, r := range URLRules {
		if u := r.Find(raw); isHTTPURL(u) {
			return u, r.Name
		}
	}
	return "", ""
}

func firstURL(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		for _, k := range []string{"url", "video_url", "uri"} {
			if s := str(t[k]); s != "" {
				return s
			}
		}
	case []any:
		for _, item := range t {
			if s := firstURL(item); isHTTPURL(s) {
				return s
			}
		}
	}
	return ""
}

func str(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}
