// Command audit-reader reads inclusion proofs out of a data-room's
// TWMA audit log and, when SNARK commitments are enabled, wraps them as
// Groth16 proofs written to <event-id>.commitment; the commitment is
// not verified here. The prover is treated as a black box behind this
// CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shamirnfs/shamirnfs/pkg/audit"
	"github.com/shamirnfs/shamirnfs/pkg/config"
	"github.com/shamirnfs/shamirnfs/pkg/snark"
)

var cfgFile string

func main() {
	root := &cobra.Command{
		Use:   "audit-reader",
		Short: "read and verify audit log inclusion proofs",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default: $XDG_CONFIG_HOME/data-room/data-room.toml)")
	root.AddCommand(proofCmd(), verifyCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openAuditLog(ctx context.Context) (*audit.Log, *config.Config, error) {
	cfg, err := config.MustLoad(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	store, err := config.CreateBackingStore(cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("open backing store: %w", err)
	}
	log, err := config.CreateAuditLog(ctx, store, cfg.Audit)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit log: %w", err)
	}
	return log, cfg, nil
}

func proofCmd() *cobra.Command {
	var snarkWrap bool
	cmd := &cobra.Command{
		Use:   "proof <event-id>",
		Short: "print the inclusion proof for an event, optionally SNARK-wrapped",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			log, cfg, err := openAuditLog(ctx)
			if err != nil {
				return err
			}

			proof, err := log.ProofFor(ctx, args[0])
			if err != nil {
				return fmt.Errorf("build proof: %w", err)
			}

			fmt.Printf("event:        %s\n", proof.EventID)
			fmt.Printf("window:       %s\n", proof.WindowID)
			fmt.Printf("window_start: %s\n", time.Unix(proof.WindowStart, 0).UTC())
			if proof.WindowEnd != 0 {
				fmt.Printf("window_end:   %s\n", time.Unix(proof.WindowEnd, 0).UTC())
			}
			fmt.Printf("merkle_root:  %x\n", proof.MerkleRoot)
			fmt.Printf("siblings:     %d\n", len(proof.Siblings))
			fmt.Printf("included:     %v\n", proof.Verify())

			if !snarkWrap {
				return nil
			}
			if !cfg.Audit.SnarkEnabled {
				return fmt.Errorf("audit.snark_enabled is false; re-run with it enabled to produce a commitment")
			}

			prover, err := config.CreateProver(cfg.Audit)
			if err != nil {
				return fmt.Errorf("load prover: %w", err)
			}
			commitment, err := prover.Prove(ctx, snark.CommitmentInput{
				EventHash:   proof.EventHash,
				Timestamp:   time.Unix(proof.WindowStart, 0),
				MerkleRoot:  proof.MerkleRoot,
				WindowStart: time.Unix(proof.WindowStart, 0),
				WindowEnd:   time.Unix(proof.WindowEnd, 0),
				MerklePath:  proof.Siblings,
			})
			if err != nil {
				return fmt.Errorf("build commitment: %w", err)
			}

			f, err := os.Create(args[0] + ".commitment")
			if err != nil {
				return fmt.Errorf("write commitment: %w", err)
			}
			defer f.Close()
			if _, err := commitment.WriteTo(f); err != nil {
				return fmt.Errorf("write commitment: %w", err)
			}
			fmt.Printf("commitment:   %s\n", f.Name())
			return nil
		},
	}
	cmd.Flags().BoolVar(&snarkWrap, "snark", false, "also produce a SNARK commitment, written to <event-id>.commitment")
	return cmd
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <event-id>",
		Short: "recompute and verify an event's inclusion proof against its window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			log, _, err := openAuditLog(ctx)
			if err != nil {
				return err
			}

			proof, err := log.ProofFor(ctx, args[0])
			if err != nil {
				return fmt.Errorf("build proof: %w", err)
			}
			if !proof.Verify() {
				return fmt.Errorf("event %s: inclusion proof does not verify against its own merkle root", args[0])
			}

			w, err := log.Window(ctx, proof.WindowID)
			if err != nil {
				return fmt.Errorf("load window: %w", err)
			}
			if w.Sealed && w.RootHash != proof.MerkleRoot {
				return fmt.Errorf("event %s: proof root does not match window %s's published root", args[0], proof.WindowID)
			}

			fmt.Printf("event %s: verified against window %s\n", args[0], proof.WindowID)
			return nil
		},
	}
}
