// Command escrowctl is the operator tool for the escrow API: it creates
// signing keys, signs call intents and hashes upgrade artifacts.
package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/blake2b"

	"github.com/devasign/task-escrow/internal/auth"
	"github.com/devasign/task-escrow/internal/escrow"
)

var (
	signSeed string
	signOp   string
	signTask string
	signArgs string
	signTTL  time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "escrowctl",
	Short:         "Operator tool for the task escrow API",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a signing key and print its address and seed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, key, err := auth.GenerateKey()
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), map[string]string{
			"address": string(addr),
			"seed":    auth.SeedHex(key),
		})
	},
}

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign an operation intent for the X-Escrow-Signature header",
	Long: `Sign an operation intent with the key behind --seed (or ESCROW_SEED).

Admin operations (initialize, set_admin, update_token, set_paused, upgrade)
are signed without --task. --args carries the call's arguments as a query
string and must match the request exactly, e.g.

  escrowctl sign --op increase_bounty --task <id> --args 'creator=<addr>&amount=500000'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		seed := signSeed
		if seed == "" {
			seed = os.Getenv("ESCROW_SEED")
		}
		if seed == "" {
			return errors.New("--seed or ESCROW_SEED is required")
		}
		if !knownOp(signOp) {
			return fmt.Errorf("unknown operation %q", signOp)
		}
		key, err := auth.PrivateKeyFromSeed(seed)
		if err != nil {
			return err
		}
		callArgs, err := canonicalArgs(signArgs)
		if err != nil {
			return err
		}
		signer := auth.NewSigner(key, signTTL)
		tok, err := signer.Sign(escrow.Intent{Op: signOp, TaskID: signTask, Args: callArgs})
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), map[string]string{
			"address":   string(signer.Address()),
			"signature": tok,
		})
	},
}

var codehashCmd = &cobra.Command{
	Use:   "codehash <file>",
	Short: "Print the blake2b-256 hash of an artifact for the upgrade call",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		h, err := blake2b.New256(nil)
		if err != nil {
			return err
		}
		if _, err := io.Copy(h, f); err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), map[string]string{"code_hash": hex.EncodeToString(h.Sum(nil))})
	},
}

var ops = []string{
	escrow.OpInitialize, escrow.OpSetAdmin, escrow.OpUpdateToken, escrow.OpSetPaused, escrow.OpUpgrade,
	escrow.OpCreateEscrow, escrow.OpAssignContributor, escrow.OpCompleteTask, escrow.OpApproveCompletion,
	escrow.OpDisputeTask, escrow.OpResolveDispute, escrow.OpRefund, escrow.OpIncreaseBounty, escrow.OpDecreaseBounty,
}

func knownOp(op string) bool {
	for _, o := range ops {
		if o == op {
			return true
		}
	}
	return false
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	signCmd.Flags().StringVar(&signSeed, "seed", "", "Hex-encoded 32-byte key seed")
	signCmd.Flags().StringVar(&signOp, "op", "", "Operation to authorize ("+strings.Join(ops, ", ")+")")
	signCmd.Flags().StringVar(&signTask, "task", "", "Task id the signature is bound to")
	signCmd.Flags().StringVar(&signArgs, "args", "", "Call arguments as key=value pairs joined by &")
	signCmd.Flags().DurationVar(&signTTL, "ttl", auth.DefaultTTL, "How long the signature stays valid")
	_ = signCmd.MarkFlagRequired("op")

	rootCmd.AddCommand(keygenCmd, signCmd, codehashCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "escrowctl:", err)
		os.Exit(1)
	}
}

// canonicalArgs re-encodes a query string with sorted keys. Repeated keys
// are rejected since an intent carries one value per argument.
func canonicalArgs(raw string) (string, error) {
	v, err := url.ParseQuery(raw)
	if err != nil {
		return "", fmt.Errorf("parse --args: %w", err)
	}
	for k, vals := range v {
		if len(vals) > 1 {
			return "", fmt.Errorf("--args repeats %q", k)
		}
	}
	return v.Encode(), nil
}
