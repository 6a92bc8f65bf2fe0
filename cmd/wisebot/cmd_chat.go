package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"wisebot/internal/store"
	"wisebot/internal/wisdom"
)

var chatConversationID string

// chatCmd runs an interactive session with persistent history.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Starts a REPL backed by the conversation store. The opening exchange is
pinned: it stays in the model context even when older history is evicted
by the token budget. Pass --conversation to resume a previous session.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatConversationID, "conversation", "", "Conversation ID to resume")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	pipeline, _, err := buildPipeline()
	if err != nil {
		return err
	}

	db, err := store.NewConversationStore(cfg.Store.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open conversation store: %w", err)
	}
	defer db.Close()

	conversationID := chatConversationID
	if conversationID == "" {
		conversationID = uuid.New().String()
		if err := db.CreateConversation(conversationID, nil); err != nil {
			return err
		}
		fmt.Printf("New conversation: %s\n", conversationID)
	} else {
		exists, err := db.Exists(conversationID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("conversation not found: %s", conversationID)
		}
		fmt.Printf("Resuming conversation: %s\n", conversationID)
	}

	fmt.Println("Type a message, or /quit to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/quit" || input == "/exit" {
			break
		}

		if err := chatTurn(ctx, pipeline, db, conversationID, input); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}

	return scanner.Err()
}

// chatTurn runs one turn: persist the user message, stream the answer,
// persist the assistant reply. The opening exchange of a conversation is
// stored as the pinned pair instead of rolling history, so the token budget
// can never evict it.
func chatTurn(ctx context.Context, pipeline *wisdom.Pipeline, db *store.ConversationStore, conversationID, input string) error {
	turnCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	userMsg := wisdom.Message{Role: wisdom.RoleUser, Content: input}

	pinned, err := db.Pinned(conversationID)
	if err != nil {
		return err
	}
	opening := len(pinned) == 0

	if !opening {
		if err := db.AppendMessage(conversationID, userMsg); err != nil {
			return err
		}
	}

	history, err := db.History(conversationID)
	if err != nil {
		return err
	}
	if opening {
		history = append(history, userMsg)
	}

	// The builder walks history newest first, so reverse the stored
	// chronological order.
	backlog := make([]wisdom.Message, len(history))
	for i, msg := range history {
		backlog[len(history)-1-i] = msg
	}

	chunks, errs, err := pipeline.Turn(turnCtx, systemMessages(), pinned, backlog)
	if err != nil {
		return err
	}

	var answer strings.Builder
	for chunk := range chunks {
		fmt.Print(chunk.Text)
		answer.WriteString(chunk.Text)
		if chunk.IsFinal {
			fmt.Println()
		}
	}

	if err, ok := <-errs; ok && err != nil {
		fmt.Println()
		fmt.Println("Oh dear. Something went wrong and I could not finish that thought.")
		return err
	}

	assistantMsg := wisdom.Message{Role: wisdom.RoleAssistant, Content: answer.String()}
	if opening {
		return db.SetPinned(conversationID, []wisdom.Message{userMsg, assistantMsg})
	}
	return db.AppendMessage(conversationID, assistantMsg)
}
