package prompts

// DecomposeParams feeds the decompose template.
type DecomposeParams struct {
	Title           string
	Description     string
	Context         string
	CurrentSubtasks []string
	MaxSubtasks     int
}

// EstimateParams feeds the estimate template.
type EstimateParams struct {
	Title       string
	Description string
	Context     string
	Subtasks    []string
}

// PrioritizeTask is one line of the prioritize template.
type PrioritizeTask struct {
	Index            int
	ID               string
	Title            string
	Description      string
	Deadline         string
	EstimatedMinutes int
}

// PrioritizeParams feeds the prioritize template.
type PrioritizeParams struct {
	Today   string
	Tasks   []PrioritizeTask
	Context string
}

// ClarifyParams feeds the clarify template.
type ClarifyParams struct {
	Title        string
	Description  string
	Context      string
	MaxQuestions int
}

// ChecklistParams feeds the checklist template.
type ChecklistParams struct {
	Title       string
	Description string
	Context     string
	Subtasks    []string
}

// StructureAnswerParams feeds the structure-answer template.
type StructureAnswerParams struct {
	Title     string
	Questions []string
	Answer    string
}

// ReflectionParams feeds the estimate-reflection template.
type ReflectionParams struct {
	Title       string
	Minutes     int
	Description string
	Context     string
}
