package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"placement-predictor/internal/features"
	"placement-predictor/internal/pipeline"
	"placement-predictor/internal/prediction"
)

// Action is a main-menu choice.
type Action string

const (
	ActionSingle Action = "single"
	ActionFile   Action = "file"
	ActionExit   Action = "exit"
)

// Prompter collects interactive input for the menu.
type Prompter interface {
	Action(ctx context.Context) (Action, error)
	Student(ctx context.Context, cols []features.Column) (pipeline.FeatureRecord, error)
	FilePath(ctx context.Context) (string, error)
	Model(ctx context.Context, models []prediction.ModelInfo, def string) (string, error)
}

// HuhPrompter renders prompts as huh forms. Accessible mode swaps the TUI
// for plain line prompts, which also works when stdin is not a terminal.
type HuhPrompter struct {
	Accessible bool
	In         io.Reader
	Out        io.Writer
}

func (h *HuhPrompter) run(ctx context.Context, fields ...huh.Field) error {
	form := huh.NewForm(huh.NewGroup(fields...)).WithAccessible(h.Accessible)
	if h.In != nil {
		form = form.WithInput(h.In)
	}
	if h.Out != nil {
		form = form.WithOutput(h.Out)
	}
	return form.RunWithContext(ctx)
}

func (h *HuhPrompter) Action(ctx context.Context) (Action, error) {
	choice := ActionSingle
	err := h.run(ctx, huh.NewSelect[Action]().
		Title("Placement Prediction CLI").
		Options(
			huh.NewOption("Predict for a single student", ActionSingle),
			huh.NewOption("Predict from a CSV file", ActionFile),
			huh.NewOption("Exit", ActionExit),
		).
		Value(&choice))
	return choice, err
}

func (h *HuhPrompter) Student(ctx context.Context, cols []features.Column) (pipeline.FeatureRecord, error) {
	values := make([]string, len(cols))
	fields := make([]huh.Field, 0, len(cols))
	for i, col := range cols {
		switch col.Kind {
		case features.KindBinary:
			values[i] = "No"
			fields = append(fields, huh.NewSelect[string]().
				Title(col.Name).
				Options(huh.NewOptions("Yes", "No")...).
				Value(&values[i]))
		default:
			fields = append(fields, huh.NewInput().
				Title(col.Name).
				Description(fmt.Sprintf("Training range %s to %s", formatNumber(col.Min), formatNumber(col.Max))).
				Validate(validateNumber).
				Value(&values[i]))
		}
	}
	if err := h.run(ctx, fields...); err != nil {
		return nil, err
	}
	record := make(pipeline.FeatureRecord, len(cols))
	for i, col := range cols {
		record[col.Name] = strings.TrimSpace(values[i])
	}
	return record, nil
}

func (h *HuhPrompter) FilePath(ctx context.Context) (string, error) {
	var path string
	err := h.run(ctx, huh.NewInput().
		Title("CSV file path").
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("enter a file path")
			}
			return nil
		}).
		Value(&path))
	return strings.TrimSpace(path), err
}

func (h *HuhPrompter) Model(ctx context.Context, models []prediction.ModelInfo, def string) (string, error) {
	choice := def
	opts := make([]huh.Option[string], len(models))
	for i, m := range models {
		opts[i] = huh.NewOption(fmt.Sprintf("%s (%s)", m.Name, m.Kind), m.Name)
	}
	err := h.run(ctx, huh.NewSelect[string]().
		Title("Choose model").
		Options(opts...).
		Value(&choice))
	return choice, err
}

func validateNumber(s string) error {
	if _, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
		return fmt.Errorf("enter a numeric value")
	}
	return nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
