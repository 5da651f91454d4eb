package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Rhythm-Sanghi/Gost-Net/internal/config"
	"github.com/Rhythm-Sanghi/Gost-Net/internal/crypto"
	"github.com/Rhythm-Sanghi/Gost-Net/internal/logger"
	"github.com/Rhythm-Sanghi/Gost-Net/internal/store"
)

var (
	configPath string
	logFile    string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "ghost",
	Short: "Encrypted peer-to-peer messaging over the local network",
	Long: `Ghost Net discovers peers on the same LAN via UDP broadcast and
exchanges encrypted messages and files over direct TCP connections.
No server, no accounts, no internet.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logFile != "" {
			return logger.Init(logFile)
		}
		logger.Console(verbose)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "settings.json", "Path to the settings file")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Append logs to a file instead of stderr")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug detail")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadSettings() (*config.Manager, error) {
	return config.Load(configPath)
}

// openStore opens the database with the storage key, the way every
// offline command reads it. The key is created on first use.
func openStore(cfg *config.Manager) (*store.Store, error) {
	cipher, err := crypto.LoadStorageCipher(cfg.KeyPath())
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.DBPath(), cipher)
}
