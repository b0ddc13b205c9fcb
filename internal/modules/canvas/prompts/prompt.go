package prompts

import (
	"crypto/sha256"
	"encoding/hex"
)

// Prompt is a rendered prompt ready for openai.GenerateJSON.
type Prompt struct {
	Name       string
	Version    int
	System     string
	User       string
	SchemaName string
	Schema     map[string]any
}

func (p Prompt) Fingerprint() string {
	h := sha256.Sum256([]byte(p.Name + "\x00" + p.System + "\x00" + p.User))
	return hex.EncodeToString(h[:8])
}
