package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	chatgenius "github.com/gauntletai/chatgenius-go"
)

var watchVerbose bool

func init() {
	watchCmd.Flags().BoolVarP(&watchVerbose, "verbose", "v", false, "log connection state to stderr")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch <channel-id>",
	Short: "Live-tail a channel",
	Long:  "Fetch the latest page of history, then stream new activity until interrupted.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		channelID := args[0]
		client := getClient(watchVerbose)
		ctx := cmd.Context()

		if err := client.Start(ctx); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		defer client.Stop()

		var mu sync.Mutex
		var messages []chatgenius.Message

		printMessage := func(m chatgenius.Message) {
			fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format("15:04:05"), m.AuthorName, m.Content)
		}

		unsub, err := client.SubscribeChannel(channelID, chatgenius.ChannelEventDemux{
			OnMessageNew: func(m chatgenius.Message) {
				mu.Lock()
				before := len(messages)
				messages = chatgenius.ApplyNewMessage(messages, m)
				grew := len(messages) > before
				mu.Unlock()
				if grew {
					printMessage(m)
				}
			},
			OnMessageEdit: func(e chatgenius.MessageEdit) {
				mu.Lock()
				messages = chatgenius.ApplyEditedMessage(messages, e)
				mu.Unlock()
				fmt.Printf("[%s] (edited) %s\n", e.EditedAt.Format("15:04:05"), e.Content)
			},
			OnMessageDelete: func(d chatgenius.MessageDelete) {
				mu.Lock()
				messages = chatgenius.ApplyDeletedMessage(messages, d.ID)
				mu.Unlock()
				fmt.Printf("(message %s deleted)\n", d.ID)
			},
			OnReactionAdd: func(r chatgenius.Reaction) {
				mu.Lock()
				messages = chatgenius.ApplyReaction(messages, r)
				mu.Unlock()
				fmt.Printf("(%s reacted %s)\n", r.Username, r.Emoji)
			},
			OnReactionRemove: func(rm chatgenius.ReactionRemove) {
				mu.Lock()
				messages = chatgenius.RemoveReaction(messages, rm)
				mu.Unlock()
			},
			OnUserUpdate: func(u chatgenius.UserUpdate) {
				mu.Lock()
				messages = chatgenius.ApplyUserUpdate(messages, u)
				mu.Unlock()
			},
		})
		if err != nil {
			return err
		}
		defer unsub()

		unsubTyping, err := client.SubscribeTyping(channelID, func(username string) {
			fmt.Fprintf(os.Stderr, "%s is typing...\n", username)
		})
		if err != nil {
			return err
		}
		defer unsubTyping()

		// The broker does not replay events missed while disconnected, so
		// refetch the snapshot on every (re)connect before trusting deltas.
		loadSnapshot := func() {
			page, err := client.REST().ChannelMessages(ctx, channelID, 0, 50)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to load history: %v\n", err)
				return
			}
			mu.Lock()
			messages = nil
			for _, m := range page.Content {
				messages = chatgenius.ApplyNewMessage(messages, m)
			}
			snapshot := append([]chatgenius.Message{}, messages...)
			mu.Unlock()
			for _, m := range snapshot {
				printMessage(m)
			}
		}
		client.OnConnect(loadSnapshot)
		loadSnapshot()

		client.OnDisconnect(func(err error) {
			if err != nil {
				fmt.Fprintf(os.Stderr, "connection lost: %v\n", err)
			}
		})

		client.Unread().SetCurrentChannel(channelID)

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sig:
		case <-ctx.Done():
		}
		fmt.Fprintln(os.Stderr, "bye")
		time.Sleep(100 * time.Millisecond)
		return nil
	},
}
