package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mossy-p/pit-signaling/internal/redis"
	"github.com/mossy-p/pit-signaling/internal/session"
)

func init() {
	rootCmd.AddCommand(pitCmd)
}

var pitCmd = &cobra.Command{
	Use:   "pit PIT_ID",
	Short: "Show a pit as mirrored in the redis directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runPit,
}

func runPit(cmd *cobra.Command, args []string) error {
	pitID, err := session.ParsePitID(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Redis.Host == "" {
		return errors.New("redis host is not configured, the pit directory is disabled")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	meta, err := redis.NewDirectory(rdb, cfg.Redis.TTL, 0).Lookup(ctx, pitID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Pit:      %s\n", meta.ID)
	fmt.Fprintf(out, "Creator:  %s\n", meta.CreatorID)
	fmt.Fprintf(out, "Created:  %s\n", meta.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Members:  %d\n", len(meta.Members))
	for _, m := range meta.Members {
		fmt.Fprintf(out, "  %-36s  %s\n", m.PeerID, m.DisplayName)
	}
	return nil
}
