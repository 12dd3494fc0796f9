package cmd

import (
	"context"
	"fmt"
	"time"

	"genesis/cache"
	"genesis/db"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Check the Redis key/value store",
	Long:  `Connect to Redis, run a set/get/delete round trip and show whether a playback session is stored.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Redis: %s:%s, DB: %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		if err := db.ConnectRedis(cfg); err != nil {
			return err
		}
		defer db.CloseRedis()
		fmt.Println("Connected.")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := db.TestRedis(ctx); err != nil {
			return fmt.Errorf("redis round trip failed: %w", err)
		}
		fmt.Println("Round trip OK.")

		rec, err := cache.NewSessionCache(cache.NewRedisKV(db.RedisClient)).Load(ctx)
		switch {
		case err != nil:
			fmt.Printf("Stored session unreadable: %v\n", err)
		case rec == nil:
			fmt.Println("No stored playback session.")
		default:
			fmt.Printf("Stored session: track %s at %.1fs, volume %.2f, repeat %s\n",
				rec.TrackID, rec.CurrentTime, rec.Volume, rec.RepeatState)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
