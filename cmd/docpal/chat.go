package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docpal/docpal/internal/agent"
	"github.com/docpal/docpal/internal/chat"
	"github.com/docpal/docpal/internal/config"
	"github.com/docpal/docpal/internal/store"
)

// newChatCommand runs an interactive conversation, persisting each
// completed round locally.
func newChatCommand() *cobra.Command {
	opts := &clientOptions{}
	var dbPath string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation with an assistant",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := newClientSession(opts)
			if err != nil {
				return err
			}
			if dbPath == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				dbPath = cfg.DBPath
			}
			chatStore, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer chatStore.Close()

			fmt.Printf("Chatting with %s (%s). Type /quit to exit.\n", session.Profile.Name, session.Model)

			var conversation *chat.Chat
			reader := bufio.NewReader(os.Stdin)
			for {
				fmt.Print(promptStyle.Render("> "))
				line, err := reader.ReadString('\n')
				if err != nil {
					// EOF ends the conversation cleanly.
					fmt.Println()
					return nil
				}
				input := strings.TrimSpace(line)
				if input == "" {
					continue
				}
				if input == "/quit" || input == "/exit" {
					return nil
				}

				if conversation == nil {
					conversation = chat.New(session.Profile.ID, session.Model, input)
				} else {
					conversation.Append(chat.TextMessage(chat.RoleUser, input))
				}

				result, err := session.Runner.Run(cmd.Context(), session.Profile, conversation, clientCallbacks())
				if errors.Is(err, agent.ErrChatDisabled) {
					fmt.Println(errorStyle.Render("This conversation is disabled and accepts no further input."))
					continue
				}
				if err != nil {
					// A failed round commits nothing; the user may retry.
					fmt.Println(errorStyle.Render("Error: " + err.Error()))
					continue
				}
				result.Commit(conversation)

				fmt.Println()
				if result.Final.Text != nil && *result.Final.Text != "" {
					fmt.Println(renderMarkdown(*result.Final.Text))
				}
				printUsage(result.Usage)

				if result.PolicyMarker != "" {
					// Flagged rounds are surfaced but never persisted.
					fmt.Println(errorStyle.Render("This conversation was flagged (" + result.PolicyMarker + ") and will not be saved."))
					continue
				}
				if err := saveConversation(cmd, chatStore, conversation); err != nil {
					// Save failures must not corrupt the in-memory chat.
					fmt.Println(errorStyle.Render("Warning: failed to save chat: " + err.Error()))
				}
			}
		},
	}
	opts.register(cmd.Flags())
	cmd.Flags().StringVar(&dbPath, "db", "", "path to the local chat database")
	return cmd
}

// saveConversation creates the chat on first save and updates after.
func saveConversation(cmd *cobra.Command, chatStore *store.Store, conversation *chat.Chat) error {
	err := chatStore.Update(cmd.Context(), conversation)
	if errors.Is(err, store.ErrNotFound) {
		return chatStore.Create(cmd.Context(), conversation)
	}
	return err
}
