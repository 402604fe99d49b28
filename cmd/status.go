package cmd

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var statusServer string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query the health endpoint of a running xaggsd instance",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusServer, "server", "http://localhost:8080", "xaggsd server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		},
	}
	resp, err := client.Get(statusServer + "/api/v1/health")
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", statusServer, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	var health struct {
		Status    string   `json:"status"`
		Version   string   `json:"version"`
		Uptime    string   `json:"uptime"`
		Providers []string `json:"providers"`
		Database  struct {
			Driver      string `json:"driver"`
			TablePrefix string `json:"table_prefix"`
			Status      string `json:"status"`
			UnitSystem  string `json:"unit_system"`
			Oldest      string `json:"data_range_oldest"`
			Newest      string `json:"data_range_newest"`
		} `json:"database"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&health); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	// Human-readable output.
	fmt.Printf("xaggsd %s\n", health.Version)
	fmt.Printf("Status: %s\n", health.Status)
	fmt.Printf("Uptime: %s\n", health.Uptime)
	fmt.Println()

	if len(health.Providers) > 0 {
		fmt.Printf("Providers: %s\n", strings.Join(health.Providers, ", "))
		fmt.Println()
	}

	fmt.Printf("Database: %s (%s, table %s)\n", health.Database.Driver, health.Database.Status, health.Database.TablePrefix)
	if health.Database.UnitSystem != "" {
		fmt.Printf("  Unit system: %s\n", health.Database.UnitSystem)
	}
	if health.Database.Oldest != "" {
		fmt.Printf("  Data range: %s to %s\n", health.Database.Oldest, health.Database.Newest)
	}

	return nil
}
