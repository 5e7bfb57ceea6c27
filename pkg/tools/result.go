package tools

// ToolResult carries a tool's outcome. ForLLM is the text fed back to the
// model in the synthetic tool-results turn.
type ToolResult struct {
	ToolName string
	ForLLM   string
	IsError  bool
	Err      error
}

func TextResult(text string) *ToolResult {
	return &ToolResult{ForLLM: text}
}

func ErrorResult(message string) *ToolResult {
	return &ToolResult{ForLLM: message, IsError: true}
}

func (r *ToolResult) WithError(err error) *ToolResult {
	r.Err = err
	return r
}

func (r *ToolResult) WithName(name string) *ToolResult {
	r.ToolName = name
	return r
}
