package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jayminwest/kota-gateway/internal/attention"
	"github.com/jayminwest/kota-gateway/internal/config"
)

var processCmd = &cobra.Command{
	Use:   "process [event.json]",
	Short: "Run one raw event through the attention pipeline",
	Long: `Reads a RawAttentionEvent JSON document from the given file (or stdin
when omitted), runs it through the pipeline, and prints the result as JSON.
Useful for trying out threshold policy changes without a webhook round trip.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	var input io.Reader = os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening event file: %w", err)
		}
		defer f.Close()
		input = f
	}

	var raw attention.RawEvent
	if err := json.NewDecoder(input).Decode(&raw); err != nil {
		return fmt.Errorf("decoding event: %w", err)
	}
	if raw.Source == "" {
		return fmt.Errorf("event is missing a source")
	}
	if raw.CorrelationID == "" {
		raw.CorrelationID = "corr_" + uuid.New().String()[:12]
	}

	pipeline, _, _, journalStore, err := buildPipeline(cfg, true)
	if err != nil {
		return err
	}
	if journalStore != nil {
		defer journalStore.Close()
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	result := pipeline.Process(ctx, &raw)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
