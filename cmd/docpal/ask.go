package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docpal/docpal/internal/chat"
)

// newAskCommand answers a single question and exits.
func newAskCommand() *cobra.Command {
	opts := &clientOptions{}
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask an assistant a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := newClientSession(opts)
			if err != nil {
				return err
			}
			question := strings.Join(args, " ")
			conversation := chat.New(session.Profile.ID, session.Model, question)

			result, err := session.Runner.Run(cmd.Context(), session.Profile, conversation, clientCallbacks())
			if err != nil {
				return fmt.Errorf("completion failed: %w", err)
			}
			result.Commit(conversation)

			fmt.Println()
			if result.Final.Text != nil {
				fmt.Println(renderMarkdown(*result.Final.Text))
			}
			if result.Denied {
				fmt.Println(errorStyle.Render("Stopped: a tool call was not approved."))
			}
			if result.PolicyMarker != "" {
				fmt.Println(errorStyle.Render("This conversation was flagged (" + result.PolicyMarker + ") and will not be saved."))
			}
			printUsage(result.Usage)

			if err := conversation.Validate(); err != nil {
				return errors.New("internal error: conversation invariant violated: " + err.Error())
			}
			return nil
		},
	}
	opts.register(cmd.Flags())
	return cmd
}
