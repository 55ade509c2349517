package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/roadmap-agent/internal/config"
	"github.com/jonathan/roadmap-agent/internal/pipeline"
	"github.com/jonathan/roadmap-agent/internal/types"
)

var (
	runConfigPath string
	runTopic      string
	runTitle      string
	runUserID     string
	runYes        bool
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Generate a roadmap end-to-end from a topic",
	Long: `Runs the full pipeline: interview -> outline -> research -> videos -> validation -> revision -> save.

The interview is answered interactively on stdin; pass --yes to skip it and let the model work from the topic alone.`,
	RunE: runPipelineCmd,
}

func init() {
	runCommand.Flags().StringVar(&runConfigPath, "config", "", "Path to config.json (values can be overridden by env)")
	runCommand.Flags().StringVarP(&runTopic, "topic", "t", "", "Learning topic (required)")
	runCommand.Flags().StringVar(&runTitle, "title", "", "Roadmap title (overrides the suggested one)")
	runCommand.Flags().StringVar(&runUserID, "user", "cli", "User id to attribute the roadmap to")
	runCommand.Flags().BoolVarP(&runYes, "yes", "y", false, "Skip the interactive interview")
	_ = runCommand.MarkFlagRequired("topic")
	rootCmd.AddCommand(runCommand)
}

func runPipelineCmd(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return err
	}
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	state := pipeline.NewState(runUserID, runTopic)
	state.ConfirmedTitle = runTitle

	var answers []types.InterviewAnswer
	if !runYes {
		questions, err := a.orch.StartInterview(ctx, state)
		if err != nil {
			return err
		}
		answers = askQuestions(questions)
	}

	sink := pipeline.SinkFunc(printEvent)
	if err := a.orch.Run(ctx, state, answers, sink); err != nil {
		return err
	}

	fmt.Printf("\nRoadmap %q complete: %d sessions", state.ResolveTitle(), len(state.ResearchedSessions))
	if state.RoadmapID != "" {
		fmt.Printf(" (saved as %s)", state.RoadmapID)
	}
	fmt.Println()
	return nil
}

// askQuestions runs the interview on stdin. Empty answers are skipped;
// unanswered questions are simply excluded from the context.
func askQuestions(questions []types.InterviewQuestion) []types.InterviewAnswer {
	reader := bufio.NewReader(os.Stdin)
	answers := make([]types.InterviewAnswer, 0, len(questions))

	for i, q := range questions {
		fmt.Printf("\n[%d/%d] %s\n", i+1, len(questions), q.Question)
		for _, opt := range q.ExampleOptions {
			fmt.Printf("  %s) %s\n", opt.Label, opt.Text)
		}
		fmt.Print("> ")

		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		answer := strings.TrimSpace(line)
		if answer == "" {
			continue
		}
		// A bare option label selects that example answer.
		for _, opt := range q.ExampleOptions {
			if strings.EqualFold(answer, opt.Label) {
				answer = opt.Text
				break
			}
		}
		answers = append(answers, types.InterviewAnswer{QuestionID: q.ID, Answer: answer})
	}
	return answers
}

func printEvent(event pipeline.Event) {
	switch event.Name {
	case pipeline.EventStageUpdate:
		fmt.Printf("==> %v\n", event.Payload["stage"])
	case pipeline.EventTitleSuggestion:
		fmt.Printf("    suggested title: %v\n", event.Payload["title"])
	case pipeline.EventSessionProgress:
		fmt.Printf("    [%v/%v] %v\n", event.Payload["completed"], event.Payload["total"], event.Payload["title"])
	case pipeline.EventValidationResult:
		fmt.Printf("    score %v, %v issues\n", event.Payload["overall_score"], event.Payload["issues"])
	case pipeline.EventError:
		fmt.Fprintf(os.Stderr, "error: %v\n", event.Payload["message"])
	}
}
