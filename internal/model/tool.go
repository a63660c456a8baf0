package model

// Tool is a rewrite style a caller can request.
type Tool struct {
	ID      string `json:"id"`
	Premium bool   `json:"premium"`
}

// DefaultTool is used when a remix request names no style.
const DefaultTool = "tweet"

var registry = []Tool{
	{ID: "tweet"},
	{ID: "linkedin"},
	{ID: "summary"},
	{ID: "email", Premium: true},
	{ID: "ad", Premium: true},
	{ID: "blog", Premium: true},
	{ID: "story", Premium: true},
	{ID: "smalltalk", Premium: true},
	{ID: "salespitch", Premium: true},
	{ID: "thanks", Premium: true},
	{ID: "followup", Premium: true},
	{ID: "apology", Premium: true},
	{ID: "reminder", Premium: true},
	{ID: "agenda", Premium: true},
	{ID: "interview", Premium: true},
}

var registryIndex = func() map[string]Tool {
	m := make(map[string]Tool, len(registry))
	for _, t := range registry {
		m[t.ID] = t
	}
	return m
}()

// LookupTool finds a tool in the static registry.
func LookupTool(id string) (Tool, bool) {
	t, ok := registryIndex[id]
	return t, ok
}

// Tools returns the registry in declaration order.
func Tools() []Tool {
	out := make([]Tool, len(registry))
	copy(out, registry)
	return out
}

// FreeToolIDs lists the tools that do not require premium.
func FreeToolIDs() []string {
	var ids []string
	for _, t := range registry {
		if !t.Premium {
			ids = append(ids, t.ID)
		}
	}
	return ids
}
