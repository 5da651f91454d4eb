package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Rhythm-Sanghi/Gost-Net/internal/engine"
	"github.com/Rhythm-Sanghi/Gost-Net/internal/peers"
)

var startUsername string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run a node: announce presence, receive messages and files",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings()
		if err != nil {
			return err
		}
		if startUsername != "" {
			if err := cfg.SetUsername(startUsername); err != nil {
				return err
			}
		}

		var eng *engine.Engine
		eng = engine.New(cfg, engine.Callbacks{
			OnMessage: func(peer, content string, at time.Time) {
				fmt.Printf("[%s] %s: %s\n", at.Format("15:04:05"), eng.PeerUsername(peer), content)
			},
			OnFile: func(peer, filename, path string, at time.Time) {
				fmt.Printf("[%s] %s sent %s, saved to %s\n", at.Format("15:04:05"), eng.PeerUsername(peer), filename, path)
			},
			OnPeers: func(snapshot []peers.Peer) {
				if len(snapshot) == 0 {
					fmt.Println("No peers online")
					return
				}
				names := make([]string, 0, len(snapshot))
				for _, p := range snapshot {
					names = append(names, fmt.Sprintf("%s (%s)", p.Username, p.IP))
				}
				fmt.Println("Peers online:", strings.Join(names, ", "))
			},
			OnStatus: func(s engine.Status) {
				slog.Info("Engine status", "detail", s.Detail)
			},
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := eng.Start(ctx); err != nil {
			return err
		}
		fmt.Printf("Ghost Net node %q up (%s)\n", cfg.Username(), eng.Status().Detail)
		if ns := eng.NetworkStatus(); ns.Connected {
			fmt.Printf("Listening on %s (%s), UDP %d / TCP %d\n", ns.IP, ns.Kind, cfg.UDPPort(), cfg.TCPPort())
		}
		fmt.Println("Press Ctrl-C to stop")

		<-ctx.Done()
		fmt.Println("\nShutting down")
		return eng.Stop()
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
	startCmd.Flags().StringVarP(&startUsername, "username", "u", "", "Display name to announce (persisted in settings)")
}
