package tools

// Spec describes one tool to the reasoning capability: its name and a JSON
// schema for its arguments.
type Spec struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

var priorityValues = []string{"LOW", "MEDIUM", "HIGH", "URGENT"}
var statusValues = []string{"TODO", "IN_PROGRESS", "DONE"}
var recurrenceValues = []string{"NONE", "DAILY", "WEEKLY", "MONTHLY"}

// Catalog returns the specs for all five tools. The set is fixed: the
// reasoning capability may only pick from these.
func Catalog() []Spec {
	taskRefProp := map[string]interface{}{
		"type":        "string",
		"description": "Task id, or free text matched against task titles",
	}

	return []Spec{
		{
			Name:        ToolAddTask,
			Description: "Create a new task for the user",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"title":      map[string]interface{}{"type": "string", "description": "Short task title"},
					"priority":   map[string]interface{}{"type": "string", "enum": priorityValues},
					"due_date":   map[string]interface{}{"type": "string", "description": "Due date as YYYY-MM-DD"},
					"tags":       map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
					"recurrence": map[string]interface{}{"type": "string", "enum": recurrenceValues},
				},
				"required": []string{"title"},
			},
		},
		{
			Name:        ToolListTasks,
			Description: "List the user's tasks, optionally filtered; all filters combine with AND",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"status":     map[string]interface{}{"type": "string", "enum": statusValues},
					"priority":   map[string]interface{}{"type": "string", "enum": priorityValues},
					"tag":        map[string]interface{}{"type": "string"},
					"due_before": map[string]interface{}{"type": "string", "description": "Only tasks due before this date, YYYY-MM-DD"},
				},
			},
		},
		{
			Name:        ToolCompleteTask,
			Description: "Mark a task as done; recurring tasks get their next occurrence created automatically",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"task_ref": taskRefProp,
				},
				"required": []string{"task_ref"},
			},
		},
		{
			Name:        ToolUpdateTask,
			Description: "Update fields of an existing task; omitted fields are left unchanged",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"task_ref":    taskRefProp,
					"title":       map[string]interface{}{"type": "string"},
					"description": map[string]interface{}{"type": "string"},
					"priority":    map[string]interface{}{"type": "string", "enum": priorityValues},
					"due_date":    map[string]interface{}{"type": "string", "description": "Due date as YYYY-MM-DD"},
					"status":      map[string]interface{}{"type": "string", "enum": statusValues},
					"tags":        map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
					"recurrence":  map[string]interface{}{"type": "string", "enum": recurrenceValues},
				},
				"required": []string{"task_ref"},
			},
		},
		{
			Name:        ToolDeleteTask,
			Description: "Permanently delete a task",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"task_ref": taskRefProp,
				},
				"required": []string{"task_ref"},
			},
		},
	}
}
