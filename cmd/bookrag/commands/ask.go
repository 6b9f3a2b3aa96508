package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

const askSources = 3

var askStream bool

// NewAskCmd creates the ask command.
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the library with citations",
		Long: `Retrieve the passages most relevant to the question and generate an
answer grounded in them. The configured generator is used: extractive
(offline), an OpenAI-compatible endpoint such as Groq, or Ollama.`,
		Example: `  bookrag ask "Why is water so precious on Arrakis?"
  bookrag ask --stream "Who are the Fremen?"`,
		Args: cobra.ExactArgs(1),
		RunE: runAsk,
	}

	cmd.Flags().BoolVar(&askStream, "stream", false, "Print the answer as it is generated")

	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	qr := a.Engine.Process(ctx, args[0])
	if qr.Unavailable() {
		printUnavailable(out, qr.Err)
	}

	fmt.Fprintln(out, boldCyan("Answer:"))
	if askStream {
		for frag, err := range a.Responder.Stream(ctx, qr) {
			if err != nil {
				fmt.Fprintln(out)
				return fmt.Errorf("streaming answer: %w", err)
			}
			fmt.Fprint(out, frag)
		}
		fmt.Fprintln(out)
	} else {
		text, err := a.Responder.Respond(ctx, qr)
		fmt.Fprintln(out, text)
		if err != nil {
			fmt.Fprintln(out, red(fmt.Sprintf("(generation failed: %v)", err)))
		}
	}

	fmt.Fprintln(out)
	printSources(out, qr.Results, askSources)
	fmt.Fprintln(out, faint(fmt.Sprintf("%d results in %s", qr.TotalResults, qr.ProcessingTime.Round(1e6))))
	return nil
}
