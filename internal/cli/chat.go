package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chaostheorist/chaos/internal/app/console"
	"github.com/chaostheorist/chaos/internal/domain"
)

func init() {
	chatCmd.Flags().StringVar(&chatModel, "model", "", "Analyst model label (Gemini, ChatGPT, Claude)")
	rootCmd.AddCommand(chatCmd)
}

var chatModel string

var chatCmd = &cobra.Command{
	Use:   "chat [PROMPT]",
	Short: "Ask the AI analyst, or start an interactive session",
	Long: `Ask the AI analyst one question, or start an interactive session when
no prompt is given. In a session, /model NAME switches the model label and
/bye exits.`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	d, err := newDaemon(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	d.Console.ToggleChat()
	if chatModel != "" {
		if err := d.Console.SetChatModel(domain.AIModel(chatModel)); err != nil {
			return err
		}
	}

	if len(args) > 0 {
		// Single-shot mode
		return askAndPrint(cmd.Context(), d.Console, strings.Join(args, " "))
	}

	// Interactive mode
	return interactiveChat(cmd.Context(), d.Console)
}

func askAndPrint(ctx context.Context, c *console.Console, text string) error {
	stop := watchLoading(c.Store(), os.Stderr)
	reply, err := c.SendChat(ctx, text)
	stop()
	if err != nil {
		return err
	}
	fmt.Printf("[%s] %s\n", reply.AIModel, reply.Text)
	return nil
}

func interactiveChat(ctx context.Context, c *console.Console) error {
	fmt.Printf(">>> Chatting with the analyst as %s (type /bye to exit)\n", c.Store().State().Chat.CurrentModel)

	scanner := newLineScanner(os.Stdin)
	for {
		fmt.Print(">>> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())

		switch {
		case input == "/bye" || input == "/exit" || input == "/quit":
			fmt.Println("Goodbye!")
			return nil
		case strings.HasPrefix(input, "/model "):
			m := domain.AIModel(strings.TrimSpace(strings.TrimPrefix(input, "/model ")))
			if err := c.SetChatModel(m); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			continue
		case input == "":
			continue
		}

		if err := askAndPrint(ctx, c, input); err != nil {
			if errors.Is(err, domain.ErrAIService) {
				fmt.Fprintln(os.Stderr, "The analyst is unavailable; your message was kept.")
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		fmt.Println()
	}

	return scanner.Err()
}
