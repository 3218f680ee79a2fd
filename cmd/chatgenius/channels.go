package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(channelsCmd)
	channelsCmd.AddCommand(channelsListCmd)
	channelsCmd.AddCommand(channelsCreateCmd)
	channelsCmd.AddCommand(channelsDeleteCmd)
}

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "Manage channels",
}

var channelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := getClient(false)
		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		channels, err := client.REST().ListChannels(ctx)
		if err != nil {
			return fmt.Errorf("failed to list channels: %w", err)
		}
		if len(channels) == 0 {
			fmt.Println("No channels.")
			return nil
		}
		for _, ch := range channels {
			fmt.Printf("%-36s  %-24s  %d messages\n", ch.ID, ch.Name, ch.MessageCount)
		}
		return nil
	},
}

var channelsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := getClient(false)
		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		ch, err := client.REST().CreateChannel(ctx, args[0], nil)
		if err != nil {
			return fmt.Errorf("failed to create channel: %w", err)
		}
		fmt.Printf("Created channel %s (%s)\n", ch.Name, ch.ID)
		return nil
	},
}

var channelsDeleteCmd = &cobra.Command{
	Use:   "delete <channel-id>",
	Short: "Delete a channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := getClient(false)
		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		if err := client.REST().DeleteChannel(ctx, args[0]); err != nil {
			return fmt.Errorf("failed to delete channel: %w", err)
		}
		fmt.Printf("Deleted channel %s\n", args[0])
		return nil
	},
}
