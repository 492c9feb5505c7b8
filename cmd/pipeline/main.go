// Package main provides the pipeline CLI for subprocess-based interop.
//
// Commands read JSON from stdin and write JSON to stdout:
//
//	# Validate a workflow document
//	cat workflow.json | pipeline validate
//
//	# Flatten a workflow's directives
//	cat workflow.json | pipeline plan
//
//	# Assess a result set
//	echo '{"results": [...]}' | pipeline assess
//
//	# Create a message envelope
//	echo '{"role": "user", "content": "..."}' | pipeline create
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/graphrag-collective/pipeline-engine/engine/envelope"
	"github.com/graphrag-collective/pipeline-engine/engine/observability"
	"github.com/graphrag-collective/pipeline-engine/engine/records"
	"github.com/graphrag-collective/pipeline-engine/engine/steps"
	"github.com/graphrag-collective/pipeline-engine/engine/workflow"
)

// Version information
const (
	Version   = "1.0.0"
	BuildTime = "2026-08-30"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		writeError(err)
		os.Exit(1)
	}
}

// newRootCmd assembles the command tree. Trace export is off unless an OTLP
// collector endpoint is given.
func newRootCmd() *cobra.Command {
	var otlpEndpoint string
	var shutdownTracer func(context.Context) error

	root := &cobra.Command{
		Use:           "pipeline",
		Short:         "Agent pipeline engine utilities",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if otlpEndpoint == "" {
				return nil
			}
			shutdown, err := observability.InitTracer("pipeline", otlpEndpoint)
			if err != nil {
				return err
			}
			shutdownTracer = shutdown
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if shutdownTracer == nil {
				return nil
			}
			return shutdownTracer(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&otlpEndpoint, "otlp-endpoint", "", "OTLP collector endpoint for trace export")
	root.AddCommand(
		validateCmd(),
		planCmd(),
		assessCmd(),
		createCmd(),
		versionCmd(),
	)
	return root
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate a workflow document from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput()
			if err != nil {
				return err
			}
			def, err := workflow.ParseDefinition(data)
			if err != nil {
				return err
			}
			return writeJSON(map[string]any{
				"valid":      true,
				"id":         def.ID,
				"directives": len(def.Steps),
			})
		},
	}
}

func planCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Flatten a workflow document into its step order",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput()
			if err != nil {
				return err
			}
			def, err := workflow.ParseDefinition(data)
			if err != nil {
				return err
			}
			return writeJSON(map[string]any{
				"id":   def.ID,
				"plan": flatten(def.Steps),
			})
		},
	}
}

func assessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assess",
		Short: "Assess a result set from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput()
			if err != nil {
				return err
			}
			var in struct {
				Results []records.Record `json:"results"`
			}
			if err := json.Unmarshal(data, &in); err != nil {
				return fmt.Errorf("invalid input: %w", err)
			}
			msg := envelope.NewMessage(envelope.RoleAssistant, "")
			msg.Meta().Results = in.Results

			assessor := &steps.Assessor{}
			res, err := assessor.Execute(cmd.Context(), msg, "")
			if err != nil {
				return err
			}
			md := res.Message.Meta()
			return writeJSON(map[string]any{
				"assessment":       md.Assessment,
				"explanation":      md.AssessmentExplanation,
				"result_count":     md.ResultCount,
				"raw_result_count": md.RawResultCount,
			})
		},
	}
}

func createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create a message envelope from stdin fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput()
			if err != nil {
				return err
			}
			var in struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			}
			if err := json.Unmarshal(data, &in); err != nil {
				return fmt.Errorf("invalid input: %w", err)
			}
			msg := envelope.NewMessage(envelope.RoleFromString(in.Role), in.Content)
			state, err := msg.ToStateDict()
			if err != nil {
				return err
			}
			return writeJSON(state)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeJSON(map[string]any{
				"version":    Version,
				"build_time": BuildTime,
			})
		},
	}
}

// flatten renders the directive tree as readable step lines.
func flatten(directives []workflow.Directive) []string {
	var out []string
	for _, d := range directives {
		switch d.Kind {
		case workflow.KindStep:
			out = append(out, d.StepID)
		case workflow.KindSubWorkflow:
			out = append(out, "sub_workflow:"+d.SubWorkflow)
		case workflow.KindLoop:
			out = append(out, fmt.Sprintf("loop[%s]:begin", d.Loop.ConditionKey))
			out = append(out, flatten(d.Loop.Steps)...)
			out = append(out, fmt.Sprintf("loop[%s]:end", d.Loop.ConditionKey))
		}
	}
	return out
}

func readInput() ([]byte, error) {
	reader := bufio.NewReader(os.Stdin)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty input")
	}
	return data, nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeError(err error) {
	out := map[string]any{"error": err.Error()}
	_ = json.NewEncoder(os.Stdout).Encode(out)
}
