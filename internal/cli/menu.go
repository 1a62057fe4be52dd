package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"

	"placement-predictor/internal/prediction"
)

// RunMenu drives the interactive loop until the user exits. Prediction
// errors are printed and the loop continues; prompt failures end it.
func RunMenu(ctx context.Context, p Predictor, prompt Prompter, out io.Writer) error {
	catalog, err := p.Catalog(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}

	for {
		action, err := prompt.Action(ctx)
		if err != nil {
			return promptDone(out, err)
		}

		switch action {
		case ActionExit:
			fmt.Fprintln(out, "Exiting... Have a great day!")
			return nil

		case ActionSingle:
			record, err := prompt.Student(ctx, catalog.Features)
			if err != nil {
				return promptDone(out, err)
			}
			model, err := prompt.Model(ctx, catalog.Models, catalog.Default)
			if err != nil {
				return promptDone(out, err)
			}
			resp, err := p.PredictRecord(ctx, record, prediction.Request{Model: model})
			if err != nil {
				fmt.Fprintf(out, "Error: %s\n", describe(err))
				continue
			}
			printSingle(out, resp)

		case ActionFile:
			path, err := prompt.FilePath(ctx)
			if err != nil {
				return promptDone(out, err)
			}
			model, err := prompt.Model(ctx, catalog.Models, catalog.Default)
			if err != nil {
				return promptDone(out, err)
			}
			resp, err := p.PredictFile(ctx, path, prediction.Request{Model: model})
			if err != nil {
				fmt.Fprintf(out, "Error: %s\n", describe(err))
				continue
			}
			printBatch(out, resp)

		default:
			fmt.Fprintf(out, "Invalid choice %q\n", action)
		}
	}
}

func promptDone(out io.Writer, err error) error {
	if stderrors.Is(err, huh.ErrUserAborted) || stderrors.Is(err, context.Canceled) {
		fmt.Fprintln(out, "Exiting... Have a great day!")
		return nil
	}
	return err
}
