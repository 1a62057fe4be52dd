// cmd/tools/schema-builder/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"placement-predictor/internal/backend"
	"placement-predictor/internal/common/logger"
	"placement-predictor/internal/features"
	"placement-predictor/internal/tabular"
	"placement-predictor/pkg/registry"
)

func main() {
	buildCmd := flag.NewFlagSet("build", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	// Build command flags
	input := buildCmd.String("input", "", "Training CSV (e.g., data/placementdata.csv)")
	output := buildCmd.String("output", "configs/schema.json", "Where to write the feature schema")
	identifier := buildCmd.String("identifier", "StudentID", "Identifier column, excluded from features")
	label := buildCmd.String("label", "PlacementStatus", "Label column, excluded from features")
	version := buildCmd.String("version", "", "Schema version tag")
	binary := buildCmd.String("binary", "", "Comma-separated columns to force as yes/no")
	exclude := buildCmd.String("exclude", "", "Comma-separated columns to drop")

	// Validate command flags
	schemaPath := validateCmd.String("schema", "configs/schema.json", "Path to feature schema")
	manifestPath := validateCmd.String("manifest", "configs/models.json", "Path to model manifest")
	defaultModel := validateCmd.String("default", "", "Model that must be present in the manifest")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "build":
		buildCmd.Parse(os.Args[2:])
		if *input == "" {
			fmt.Println("Error: input is required for build.")
			buildCmd.Usage()
			os.Exit(1)
		}
		schema, err := buildSchema(*input, features.InferOptions{
			Version:    *version,
			Identifier: *identifier,
			Label:      *label,
			Binary:     splitList(*binary),
			Exclude:    splitList(*exclude),
		})
		if err != nil {
			fmt.Printf("Error building schema: %v\n", err)
			os.Exit(1)
		}
		if err := saveSchema(schema, *output); err != nil {
			fmt.Printf("Error saving schema: %v\n", err)
			os.Exit(1)
		}
		for _, line := range schema.Summary() {
			fmt.Println("  " + line)
		}
		fmt.Printf("Wrote %d features to %s (fingerprint %s)\n", schema.NumFeatures(), *output, schema.Fingerprint())

	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validate(*schemaPath, *manifestPath, *defaultModel); err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}

	case "help":
		fallthrough
	default:
		help()
	}
}

func buildSchema(path string, opts features.InferOptions) (*features.Schema, error) {
	table, err := tabular.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read training data: %w", err)
	}
	return features.Infer(table.Header, table.Rows, opts)
}

// validate loads the schema and every backend in the manifest, the same
// checks the server runs at startup.
func validate(schemaPath, manifestPath, defaultModel string) error {
	schema, err := features.LoadSchema(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to load schema: %w", err)
	}
	manifest, err := registry.LoadManifest(manifestPath)
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}
	reg := registry.New()
	if err := backend.LoadAll(manifest, reg, schema.NumFeatures(), logger.NewNoOpLogger()); err != nil {
		return err
	}
	if defaultModel != "" {
		if _, err := reg.Resolve(defaultModel); err != nil {
			return fmt.Errorf("default model: %w", err)
		}
	}

	fmt.Printf("Validation passed. Schema %s has %d features; %d models loaded: %s\n",
		schema.Version, schema.NumFeatures(), reg.Len(), strings.Join(reg.Names(), ", "))
	return nil
}

func saveSchema(schema *features.Schema, path string) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write schema file: %w", err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func help() {
	fmt.Print(`
Usage: schema-builder <command> [flags]

Commands:
  build     Derive the feature schema (kinds and min/max) from training data
  validate  Load the schema and every model in the manifest
  help      Show this help message

Examples:
  schema-builder build -input data/placementdata.csv -output configs/schema.json -version 2025-03-placement-v1
  schema-builder validate -schema configs/schema.json -manifest configs/models.json -default logistic_regression

Use 'schema-builder <command> -h' for more information about a command.
`)
}
