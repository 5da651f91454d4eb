package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Rhythm-Sanghi/Gost-Net/internal/config"
	"github.com/Rhythm-Sanghi/Gost-Net/internal/crypto"
	"github.com/Rhythm-Sanghi/Gost-Net/internal/protocol"
	"github.com/Rhythm-Sanghi/Gost-Net/internal/store"
	"github.com/Rhythm-Sanghi/Gost-Net/internal/transport"
)

// recordSent writes the ME side of a transfer to the local history. A
// send that worked but could not be recorded is still a success.
func recordSent(cfg *config.Manager, peerIP, content, msgType, filePath string) {
	cipher, err := crypto.LoadStorageCipher(cfg.KeyPath())
	if err != nil {
		slog.Warn("Sent but not recorded", "error", err)
		return
	}
	st, err := store.Open(cfg.DBPath(), cipher)
	if err != nil {
		slog.Warn("Sent but not recorded", "error", err)
		return
	}
	defer st.Close()
	if err := st.SaveMessage(peerIP, store.SenderMe, content, msgType, filePath, time.Now()); err != nil {
		slog.Warn("Sent but not recorded", "error", err)
	}
}

var sendCmd = &cobra.Command{
	Use:   "send <peer-ip> <message>...",
	Short: "Send a text message to a peer",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings()
		if err != nil {
			return err
		}
		peerIP := args[0]
		content := strings.Join(args[1:], " ")

		client := transport.NewClient(crypto.NewWireCipher(), cfg.TCPPort(), slog.Default())
		if err := client.SendText(cmd.Context(), peerIP, content, time.Now()); err != nil {
			return err
		}
		fmt.Printf("Sent to %s\n", peerIP)
		recordSent(cfg, peerIP, content, protocol.TypeText, "")
		return nil
	},
}

var sendFileCmd = &cobra.Command{
	Use:   "send-file <peer-ip> <path>",
	Short: "Send a file to a peer",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings()
		if err != nil {
			return err
		}
		peerIP, path := args[0], args[1]

		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if max := cfg.MaxFileSize(); info.Size() > max {
			return fmt.Errorf("%s is %d bytes, over the %d byte limit", path, info.Size(), max)
		}

		client := transport.NewClient(crypto.NewWireCipher(), cfg.TCPPort(), slog.Default())
		err = client.SendFile(cmd.Context(), peerIP, path, time.Now(), func(sent, total int64) {
			fmt.Printf("\r%d / %d bytes", sent, total)
		})
		fmt.Println()
		if err != nil {
			return err
		}
		fmt.Printf("Sent %s to %s\n", filepath.Base(path), peerIP)
		recordSent(cfg, peerIP, filepath.Base(path), protocol.TypeFile, path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(sendFileCmd)
}
