package prompts

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"
)

// Prompt versions recorded on AI interactions.
const (
	PlannerVersion       = "planner.v1"
	MentorVersion        = "mentor.v1"
	EvaluatorVersion     = "evaluator.v1"
	TaskGeneratorVersion = "task-generator.v1"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(
	template.New("prompts").
		Funcs(template.FuncMap{
			"orDefault": orDefault,
			"join":      strings.Join,
			"fixed":     fixed,
			"json":      toJSON,
		}).
		ParseFS(templateFS, "templates/*.tmpl"),
)

func orDefault(def, v string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func fixed(prec int, f float64) string {
	return strconv.FormatFloat(f, 'f', prec, 64)
}

func toJSON(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// PlannerParams are the inputs of the planner prompt.
type PlannerParams struct {
	GoalTitle       string
	GoalDescription string
	Category        string
	// TargetDate is a YYYY-MM-DD date; empty means flexible.
	TargetDate string
	// DurationDays is the time until the target date; 0 means unknown.
	DurationDays int
	Timezone     string
	WeekStartsOn string
}

// BuildPlanner renders the planner user prompt.
func BuildPlanner(p PlannerParams) (string, error) {
	duration := "Not specified"
	if p.DurationDays > 0 {
		duration = strconv.Itoa(p.DurationDays)
	}
	return render("planner.tmpl", struct {
		PlannerParams
		Duration string
	}{p, duration})
}

// RecentTask is one line of task history shown to the mentor.
type RecentTask struct {
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completedAt"`
}

// MentorParams are the inputs of the mentor prompt.
type MentorParams struct {
	GoalTitle      string
	StreakDays     int
	CompletionRate float64
	RecentTasks    []RecentTask
	Context        string
}

// BuildMentor renders the mentor user prompt.
func BuildMentor(p MentorParams) (string, error) {
	if p.RecentTasks == nil {
		p.RecentTasks = []RecentTask{}
	}
	return render("mentor.tmpl", p)
}

// EvaluatorParams are the inputs of the evaluator prompt.
type EvaluatorParams struct {
	TaskTitle       string
	TaskDescription string
	ExpectedMinutes int
	ActualMinutes   int
	UserNotes       string
}

// BuildEvaluator renders the evaluator user prompt.
func BuildEvaluator(p EvaluatorParams) (string, error) {
	return render("evaluator.tmpl", p)
}

// TaskGeneratorParams are the inputs of the daily task prompt.
type TaskGeneratorParams struct {
	GoalTitle            string
	MilestoneTitle       string
	MilestoneDescription string
	TargetWeek           int
	KeyActivities        []string
	DayOfPlan            int
	CompletionRate       float64
	StreakDays           int
	Date                 time.Time
}

// BuildTaskGenerator renders the daily task user prompt.
func BuildTaskGenerator(p TaskGeneratorParams) (string, error) {
	return render("task_generator.tmpl", struct {
		TaskGeneratorParams
		DateString string
		Weekday    string
	}{p, p.Date.Format("2006-01-02"), p.Date.Weekday().String()})
}
