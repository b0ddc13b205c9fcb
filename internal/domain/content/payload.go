package content

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

const (
	KindText           = "text"
	KindVideo          = "video"
	KindHTMLAnimation  = "html_animation"
	KindInteractiveApp = "interactive_app"
	KindQuiz           = "quiz"
	KindFormula        = "formula"
	KindStory          = "story"
	KindImage          = "image"
	KindError          = "error"
)

// Payload is one variant of the content stored in a module version. Every
// variant serializes with a "type" discriminator and a "title".
type Payload interface {
	Kind() string
	Heading() string
}

type Text struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Subtitle string `json:"subtitle,omitempty"`
}

type Video struct {
	Title        string `json:"title"`
	VideoURL     string `json:"video_url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	// Transcript holds narration and on-screen text when the video was annotated.
	Transcript string `json:"transcript,omitempty"`
	Pending    bool   `json:"pending,omitempty"`
}

type HTMLAnimation struct {
	Title       string `json:"title"`
	HTMLContent string `json:"html_content"`
}

type AppParameter struct {
	Name string  `json:"name"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Unit string  `json:"unit,omitempty"`
}

type InteractiveApp struct {
	Title   string         `json:"title"`
	AppData map[string]any `json:"app_data"`
}

// Parameters reads app_data.parameters by convention. Malformed entries
// are skipped.
func (a InteractiveApp) Parameters() []AppParameter {
	raw, ok := a.AppData["parameters"].([]any)
	if !ok {
		return nil
	}
	out := make([]AppParameter, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		if strings.TrimSpace(name) == "" {
			continue
		}
		p := AppParameter{Name: name, Min: toFloat(m["min"]), Max: toFloat(m["max"])}
		p.Unit, _ = m["unit"].(string)
		out = append(out, p)
	}
	return out
}

type QuizQuestion struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	AnswerIndex int      `json:"answer_index"`
	Explanation string   `json:"explanation,omitempty"`
}

type Quiz struct {
	Title     string         `json:"title"`
	Questions []QuizQuestion `json:"questions"`
}

type FormulaVariable struct {
	Symbol  string `json:"symbol"`
	Meaning string `json:"meaning"`
}

type Formula struct {
	Title       string            `json:"title"`
	MainFormula string            `json:"main_formula"`
	Explanation string            `json:"explanation"`
	Variables   []FormulaVariable `json:"variables,omitempty"`
}

type Story struct {
	Title     string `json:"title"`
	Narrative string `json:"narrative"`
	Moral     string `json:"moral,omitempty"`
}

type Image struct {
	Title        string `json:"title"`
	ImageURL     string `json:"image_url"`
	Alt          string `json:"alt,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Pending      bool   `json:"pending,omitempty"`
}

type ErrorReason string

const (
	ReasonGenerationFailed ErrorReason = "generation_failed"
	ReasonFailed           ErrorReason = "failed"
	ReasonTimeout          ErrorReason = "timeout"
)

// Error marks a module whose generation ended badly. It is a distinct
// variant so clients never confuse it with a placeholder.
type Error struct {
	Title      string      `json:"title"`
	Message    string      `json:"message"`
	Reason     ErrorReason `json:"reason"`
	ModuleType string      `json:"module_type"`
}

// Raw holds a payload whose type is not registered. Fields keeps every key
// of the original document, including "type".
type Raw struct {
	Type   string
	Fields map[string]any
}

func (Text) Kind() string           { return KindText }
func (Video) Kind() string          { return KindVideo }
func (HTMLAnimation) Kind() string  { return KindHTMLAnimation }
func (InteractiveApp) Kind() string { return KindInteractiveApp }
func (Quiz) Kind() string           { return KindQuiz }
func (Formula) Kind() string        { return KindFormula }
func (Story) Kind() string          { return KindStory }
func (Image) Kind() string          { return KindImage }
func (Error) Kind() string          { return KindError }
func (r Raw) Kind() string          { return r.Type }

func (p Text) Heading() string           { return p.Title }
func (p Video) Heading() string          { return p.Title }
func (p HTMLAnimation) Heading() string  { return p.Title }
func (p InteractiveApp) Heading() string { return p.Title }
func (p Quiz) Heading() string           { return p.Title }
func (p Formula) Heading() string        { return p.Title }
func (p Story) Heading() string          { return p.Title }
func (p Image) Heading() string          { return p.Title }
func (p Error) Heading() string          { return p.Title }
func (r Raw) Heading() string {
	s, _ := r.Fields["title"].(string)
	return s
}

// IsPlaceholder reports whether p is a pending media payload.
func IsPlaceholder(p Payload) bool {
	switch v := p.(type) {
	case Video:
		return v.Pending
	case *Video:
		return v != nil && v.Pending
	case Image:
		return v.Pending
	case *Image:
		return v != nil && v.Pending
	}
	return false
}

func IsError(p Payload) bool {
	if p == nil {
		return false
	}
	return p.Kind() == KindError
}

var (
	registryMu sync.RWMutex
	registry   = map[string]func() Payload{
		KindText:           func() Payload { return &Text{} },
		KindVideo:          func() Payload { return &Video{} },
		KindHTMLAnimation:  func() Payload { return &HTMLAnimation{} },
		KindInteractiveApp: func() Payload { return &InteractiveApp{} },
		KindQuiz:           func() Payload { return &Quiz{} },
		KindFormula:        func() Payload { return &Formula{} },
		KindStory:          func() Payload { return &Story{} },
		KindImage:          func() Payload { return &Image{} },
		KindError:          func() Payload { return &Error{} },
	}
)

// Register adds a decodable variant. factory must return a pointer.
func Register(kind string, factory func() Payload) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = factory
}

// Encode serializes p with its "type" discriminator.
func Encode(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("content: nil payload")
	}
	if r, ok := p.(Raw); ok {
		fields := make(map[string]any, len(r.Fields)+1)
		for k, v := range r.Fields {
			fields[k] = v
		}
		fields["type"] = r.Type
		return json.Marshal(fields)
	}
	if r, ok := p.(*Raw); ok {
		return Encode(*r)
	}
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("content: marshal %s: %w", p.Kind(), err)
	}
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("content: marshal %s: %w", p.Kind(), err)
	}
	fields["type"] = p.Kind()
	return json.Marshal(fields)
}

// Decode parses a stored document. Unknown types come back as Raw; only
// syntactically invalid JSON or a missing "type" is an error. Returned
// variants are values, not pointers.
func Decode(raw []byte) (Payload, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("content: decode: %w", err)
	}
	kind := strings.TrimSpace(head.Type)
	if kind == "" {
		return nil, fmt.Errorf("content: missing type")
	}

	registryMu.RLock()
	factory, ok := registry[kind]
	registryMu.RUnlock()
	if !ok {
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("content: decode %s: %w", kind, err)
		}
		return Raw{Type: kind, Fields: fields}, nil
	}

	target := factory()
	if err := json.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("content: decode %s: %w", kind, err)
	}
	return deref(target), nil
}

func deref(p Payload) Payload {
	switch v := p.(type) {
	case *Text:
		return *v
	case *Video:
		return *v
	case *HTMLAnimation:
		return *v
	case *InteractiveApp:
		return *v
	case *Quiz:
		return *v
	case *Formula:
		return *v
	case *Story:
		return *v
	case *Image:
		return *v
	case *Error:
		return *v
	default:
		return p
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	default:
		return 0
	}
}
