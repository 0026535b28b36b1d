package catalog

// Kinds with special treatment in the editor.
const (
	// KindStart is the entry node every new document begins with.
	KindStart = "start"

	// KindNote is a free-text annotation. It has no ports and is not a
	// connectable unit; the placement resolver leaves its label empty.
	KindNote = "note"

	// KindHumanInput pauses a run for structured human input.
	KindHumanInput = "human_input"

	// KindCron marks a workflow for scheduled execution.
	KindCron = "cron"
)

// Builtins returns the default node-type catalog used when the executor's
// listing is unavailable, for offline editing, and by the reference server.
func Builtins() *Catalog {
	c := New()

	c.Register(NodeTypeDef{
		Type:        KindStart,
		Description: "Entry point of the workflow",
		Inputs:      []string{},
		Outputs:     []string{"default"},
	})

	c.Register(NodeTypeDef{
		Type:        KindCron,
		Description: "Run this workflow on a schedule",
		Inputs:      []string{},
		Outputs:     []string{"default"},
		Params: []ParamDef{
			{Name: "schedule_type", Type: "string", Default: "Interval", Choices: []string{"Interval", "Cron"}},
			{Name: "cron_expression", Type: "string", Description: "Standard five-field cron expression"},
			{Name: "interval_value", Type: "int", Default: "1"},
			{Name: "interval_unit", Type: "string", Default: "Minutes", Choices: []string{"Seconds", "Minutes", "Hours"}},
		},
	})

	c.Register(NodeTypeDef{
		Type:        "llm",
		Description: "Send a prompt to a language model",
		Inputs:      []string{"default"},
		Outputs:     []string{"default"},
		Params: []ParamDef{
			{Name: "prompt", Type: "string"},
			{Name: "model", Type: "string"},
			{Name: "temperature", Type: "string"},
		},
	})

	c.Register(NodeTypeDef{
		Type:        "debug",
		Description: "Print the incoming value to the run log",
		Inputs:      []string{"default"},
		Outputs:     []string{"default"},
		Params: []ParamDef{
			{Name: "prefix", Type: "string", Default: "DEBUG: "},
		},
	})

	c.Register(NodeTypeDef{
		Type:        KindHumanInput,
		Description: "Pause and wait for user approval or input",
		Inputs:      []string{"default"},
		Outputs:     []string{"default", "approved", "rejected"},
		Params: []ParamDef{
			{Name: "prompt", Type: "string", Default: "User Input Required"},
			{Name: "fields", Type: "string", Description: "JSON list of requested fields"},
			{Name: "timeout", Type: "int", Default: "0"},
		},
	})

	c.Register(NodeTypeDef{
		Type:        "if_else",
		Description: "Route to one of two branches by condition",
		Inputs:      []string{"default"},
		Outputs:     []string{"true", "false"},
		Params: []ParamDef{
			{Name: "condition", Type: "string"},
		},
	})

	c.Register(NodeTypeDef{
		Type:        "merge",
		Description: "Join multiple branches back into one",
		Inputs:      []string{"a", "b"},
		Outputs:     []string{"default"},
	})

	c.Register(NodeTypeDef{
		Type:        "delay",
		Description: "Wait a fixed amount of time",
		Inputs:      []string{"default"},
		Outputs:     []string{"default"},
		Params: []ParamDef{
			{Name: "seconds", Type: "int", Default: "1"},
		},
	})

	c.Register(NodeTypeDef{
		Type:        "file_read",
		Description: "Read a file from the workspace data directory",
		Inputs:      []string{"default"},
		Outputs:     []string{"default"},
		Params: []ParamDef{
			{Name: "path", Type: "string"},
		},
	})

	c.Register(NodeTypeDef{
		Type:        "file_write",
		Description: "Write the incoming value to a file",
		Inputs:      []string{"default"},
		Outputs:     []string{"default"},
		Params: []ParamDef{
			{Name: "path", Type: "string"},
			{Name: "append", Type: "boolean", Default: false},
		},
	})

	c.Register(NodeTypeDef{
		Type:        "web_fetch",
		Description: "Fetch a URL and pass its body downstream",
		Inputs:      []string{"default"},
		Outputs:     []string{"default"},
		Params: []ParamDef{
			{Name: "url", Type: "string"},
		},
	})

	c.Register(NodeTypeDef{
		Type:        "memory",
		Description: "Store or recall values from shared memory",
		Inputs:      []string{"default"},
		Outputs:     []string{"default"},
		Params: []ParamDef{
			{Name: "key", Type: "string"},
			{Name: "mode", Type: "string", Default: "store", Choices: []string{"store", "recall"}},
		},
	})

	c.Register(NodeTypeDef{
		Type:        KindNote,
		Description: "Free-text annotation on the canvas",
		Inputs:      []string{},
		Outputs:     []string{},
		Params: []ParamDef{
			{Name: "text", Type: "string"},
		},
	})

	return c
}
