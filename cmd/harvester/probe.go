package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Harvester/internal/chain"
	"github.com/shaiso/Harvester/internal/config"
)

func newProbeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check endpoint health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return probeEndpoints(*configPath)
		},
	}
}

func probeEndpoints(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	client := chain.NewClient(cfg.Chain.CallTimeout.Std())

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENDPOINT\tSTATUS\tCHAIN_ID\tLATENCY")

	healthy := 0
	for _, url := range cfg.Chain.Endpoints {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Chain.CallTimeout.Std())
		start := time.Now()
		chainID, err := client.ChainID(ctx, url)
		latency := time.Since(start).Round(time.Millisecond)
		cancel()

		switch {
		case err != nil:
			fmt.Fprintf(w, "%s\tERROR: %v\t-\t%s\n", url, err, latency)
		case chainID != cfg.Chain.ChainID:
			fmt.Fprintf(w, "%s\tWRONG NETWORK\t%d\t%s\n", url, chainID, latency)
		default:
			fmt.Fprintf(w, "%s\tOK\t%d\t%s\n", url, chainID, latency)
			healthy++
		}
	}
	w.Flush()

	fmt.Printf("\n%d/%d endpoints healthy\n", healthy, len(cfg.Chain.Endpoints))
	if healthy == 0 {
		return chain.ErrNoHealthyEndpoint
	}
	return nil
}
