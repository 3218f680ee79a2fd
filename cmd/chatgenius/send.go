package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var sendParentID string

func init() {
	sendCmd.Flags().StringVar(&sendParentID, "parent", "", "parent message id for a threaded reply")
	rootCmd.AddCommand(sendCmd)
}

var sendCmd = &cobra.Command{
	Use:   "send <channel-id> <content>",
	Short: "Send a message to a channel",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		channelID, content := args[0], args[1]

		client := getClient(false)
		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		// REST rather than the broker: a one-shot CLI send wants a
		// request/response error code, not an async echo.
		msg, err := client.REST().CreateMessage(ctx, channelID, content, sendParentID)
		if err != nil {
			return fmt.Errorf("failed to send message: %w", err)
		}
		fmt.Printf("Sent message %s at %s\n", msg.ID, msg.CreatedAt.Format(time.RFC3339))
		return nil
	},
}
