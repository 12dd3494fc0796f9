package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"genesis/core/discovery"

	"github.com/spf13/cobra"
)

var (
	discoverQuery string
	discoverLimit int
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Search the music catalog",
	Long:  `Search the Jamendo catalog from the command line and print the matching tracks.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		q := strings.TrimSpace(discoverQuery)
		if q == "" {
			q = "popular"
		}

		client := discovery.NewJamendoClient(cfg.JamendoClientID)
		client.SetBaseURL(cfg.JamendoAPIURL)
		limit := discoverLimit
		if !cmd.Flags().Changed("limit") {
			limit = cfg.DiscoverLimit
		}
		client.SetLimit(limit)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		fmt.Printf("Searching %s for %q...\n", client.Name(), q)
		tracks, err := client.Search(ctx, q)
		if err != nil {
			return err
		}
		if len(tracks) == 0 {
			fmt.Println("No tracks found.")
			return nil
		}

		fmt.Printf("\nFound %d tracks:\n", len(tracks))
		for i, t := range tracks {
			fmt.Printf("%2d. %s - %s [%s] %s\n", i+1, t.Title, t.Artist, t.Album, formatDuration(t.Duration))
			fmt.Printf("    id %s  %s\n", t.ID, t.AudioURL)
		}
		return nil
	},
}

func formatDuration(seconds float64) string {
	s := int(seconds)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().StringVarP(&discoverQuery, "query", "q", "", "search keywords (default \"popular\")")
	discoverCmd.Flags().IntVarP(&discoverLimit, "limit", "l", 10, "maximum number of results (default DISCOVER_LIMIT)")
}
