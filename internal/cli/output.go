package cli

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"placement-predictor/internal/common/errors"
	apihttp "placement-predictor/internal/common/http"
	"placement-predictor/internal/pipeline"
	"placement-predictor/internal/prediction"
	"placement-predictor/internal/results"
)

func describe(err error) string {
	var apiErr *apihttp.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.Message
	}
	return errors.UserMessage(err)
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatProbability(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', 4, 64)
}

func printSingle(out io.Writer, resp *prediction.SingleResponse) {
	line := fmt.Sprintf("Prediction Result: %s", resp.Prediction.Label)
	if p := resp.Prediction.Probability; p != nil {
		line += fmt.Sprintf(" (probability %s)", formatProbability(p))
	}
	if resp.Cached {
		line += " [cached]"
	}
	fmt.Fprintf(out, "%s\nModel: %s\n", line, resp.Model)
}

func printBatch(out io.Writer, resp *prediction.BatchResponse) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	withProb := false
	for _, p := range resp.Predictions {
		if p.Probability != nil {
			withProb = true
			break
		}
	}
	if withProb {
		fmt.Fprintln(tw, "ROW\tID\tPREDICTION\tPROBABILITY")
	} else {
		fmt.Fprintln(tw, "ROW\tID\tPREDICTION")
	}
	for i, p := range resp.Predictions {
		id := "-"
		if p.Identifier != nil {
			id = *p.Identifier
		}
		if withProb {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, id, p.Label, formatProbability(p.Probability))
		} else {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, id, p.Label)
		}
	}
	_ = tw.Flush()

	placed := 0
	for _, p := range resp.Predictions {
		if p.Label == pipeline.Placed {
			placed++
		}
	}
	fmt.Fprintf(out, "\n%d of %d students predicted Placed (model %s)\n%s\n", placed, len(resp.Predictions), resp.Model, resp.Message)
}

func printModels(out io.Writer, c *Catalog) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tDEFAULT")
	for _, m := range c.Models {
		def := ""
		if m.Name == c.Default {
			def = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Name, m.Kind, def)
	}
	_ = tw.Flush()
}

func printRuns(out io.Writer, runs []results.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tMODEL\tROWS\tPLACED\tSTATUS\tOUTPUT")
	for _, r := range runs {
		status := r.Status
		if r.ErrorCode != "" {
			status += " (" + r.ErrorCode + ")"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.Backend, r.Rows, r.Placed, status, r.OutputPath)
	}
	_ = tw.Flush()
}
