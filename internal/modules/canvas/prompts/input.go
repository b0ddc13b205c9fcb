package prompts

// Input is a superset of all fields any prompt might need.
// Missing fields render empty strings (templates use missingkey=zero).
type Input struct {
	// Canvas
	Topic  string
	Domain string
	// Planning
	MaxModules int
	// Module being realized
	ModuleType        string
	ModuleTitle       string
	ModuleDescription string
	// Optional user instruction (edit / expand prompt)
	UserPrompt string
	// Digest of sibling modules already generated on the canvas
	PriorContext string
	// Routing
	CurrentTopic  string
	CurrentDomain string
}
