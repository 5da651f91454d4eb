package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Rhythm-Sanghi/Gost-Net/internal/protocol"
	"github.com/Rhythm-Sanghi/Gost-Net/internal/store"
)

var (
	historyLimit  int
	exportOut     string
	cleanupHours  int
	cleanupVacuum bool
)

var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "List every peer this node has ever seen",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		peers, err := st.AllPeers()
		if err != nil {
			return err
		}
		if len(peers) == 0 {
			fmt.Println("No peers recorded")
			return nil
		}
		for _, p := range peers {
			last := time.Unix(int64(p.LastSeen), 0).Format("2006-01-02 15:04:05")
			fmt.Printf("%-15s  %-20s  last seen %s\n", p.IPAddress, p.Username, last)
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <peer-ip>",
	Short: "Print the decrypted chat history with a peer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		peerIP := args[0]
		entries, err := st.History(peerIP, historyLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Printf("No messages with %s\n", peerIP)
			return nil
		}
		name, _ := st.PeerUsername(peerIP)
		if name == "" {
			name = peerIP
		}
		for _, e := range entries {
			sender := name
			if e.Sender == store.SenderMe {
				sender = "You"
			}
			ts := e.Timestamp.Format("2006-01-02 15:04:05")
			if e.MessageType == protocol.TypeFile {
				fmt.Printf("[%s] %s: [FILE] %s (%s)\n", ts, sender, e.Content, e.FilePath)
			} else {
				fmt.Printf("[%s] %s: %s\n", ts, sender, e.Content)
			}
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <peer-ip>",
	Short: "Write the chat history with a peer to a text file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		peerIP := args[0]
		out := exportOut
		if out == "" {
			out = fmt.Sprintf("chat_%s.txt", strings.ReplaceAll(peerIP, ".", "_"))
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := st.ExportChat(peerIP, f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Printf("Exported chat with %s to %s\n", peerIP, out)
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete messages older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		hours := cleanupHours
		if hours <= 0 {
			hours = cfg.RetentionHours()
		}
		removed, err := st.CleanupOlderThan(hours)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d messages older than %d hours\n", removed, hours)
		if cleanupVacuum {
			if err := st.Vacuum(); err != nil {
				return err
			}
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show what the local database holds",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := st.Statistics()
		if err != nil {
			return err
		}
		fmt.Printf("Messages: %d\n", stats.TotalMessages)
		fmt.Printf("Peers:    %d\n", stats.TotalPeers)
		if stats.OldestMessage != nil {
			fmt.Printf("Oldest:   %s\n", stats.OldestMessage.Format("2006-01-02 15:04:05"))
			fmt.Printf("Newest:   %s\n", stats.NewestMessage.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 50, "Maximum messages to show")
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "Output file (default chat_<ip>.txt)")
	cleanupCmd.Flags().IntVar(&cleanupHours, "hours", 0, "Retention window (default from settings)")
	cleanupCmd.Flags().BoolVar(&cleanupVacuum, "vacuum", false, "Compact the database afterwards")

	rootCmd.AddCommand(peersCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(statsCmd)
}
