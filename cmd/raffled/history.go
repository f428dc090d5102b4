// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/blinklabs-io/raffled/database"
	"github.com/blinklabs-io/raffled/internal/config"
	"github.com/blinklabs-io/raffled/raffle"
	"github.com/spf13/cobra"
)

type historyFlags struct {
	limit  int
	json   bool
	verify bool
}

func openDatabase(cfg *config.Config) (*database.Database, error) {
	db, err := database.New(&database.Config{
		DataDir:        cfg.DatabasePath,
		Logger:         slog.New(slog.NewJSONHandler(io.Discard, nil)),
		BlobPlugin:     cfg.BlobPlugin,
		MetadataPlugin: cfg.MetadataPlugin,
	})
	if err != nil {
		var tsErr database.CommitTimestampError
		if db != nil && errors.As(err, &tsErr) {
			// History is still readable, the node realigns on startup
			fmt.Fprintf(os.Stderr, "warning: %s\n", err)
			return db, nil
		}
		if db != nil {
			_ = db.Close()
		}
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

func printDraws(w io.Writer, draws []raffle.DrawRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROUND\tREQUEST\tENTRANTS\tWINNER\tPRIZE\tTIME")
	for _, d := range draws {
		fmt.Fprintf(
			tw,
			"%d\t%d\t%d\t%s\t%s\t%s\n",
			d.Round,
			uint64(d.RequestID),
			d.NumEntrants,
			d.Winner.Hex(),
			d.Prize.String(),
			d.Timestamp.UTC().Format(time.RFC3339),
		)
	}
	return tw.Flush()
}

func printReceipt(w io.Writer, receipt *database.DrawReceipt, asJson bool) error {
	verifyErr := receipt.Verify()
	if asJson {
		out := struct {
			*database.DrawReceipt
			Verified    bool   `json:"verified"`
			VerifyError string `json:"verifyError,omitempty"`
		}{
			DrawReceipt: receipt,
			Verified:    verifyErr == nil,
		}
		if verifyErr != nil {
			out.VerifyError = verifyErr.Error()
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	fmt.Fprintf(w, "Round:        %d\n", receipt.Round)
	fmt.Fprintf(w, "Request ID:   %d\n", uint64(receipt.RequestID))
	fmt.Fprintf(w, "Random word:  %s\n", receipt.RandomWord.String())
	fmt.Fprintf(w, "Entrants:     %d\n", len(receipt.Entrants))
	for i, addr := range receipt.Entrants {
		fmt.Fprintf(w, "  [%d] %s\n", i, addr.Hex())
	}
	fmt.Fprintf(w, "Winner:       [%d] %s\n", receipt.WinnerIndex, receipt.Winner.Hex())
	fmt.Fprintf(w, "Prize:        %s\n", receipt.Prize.String())
	if verifyErr != nil {
		fmt.Fprintf(w, "Verified:     no (%s)\n", verifyErr)
		return nil
	}
	fmt.Fprintln(w, "Verified:     yes")
	return nil
}

func historyRun(
	w io.Writer,
	cfg *config.Config,
	flags historyFlags,
	args []string,
) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if len(args) == 1 {
		round, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid round %q: %w", args[0], err)
		}
		receipt, err := db.DrawReceipt(round)
		if err != nil {
			return fmt.Errorf("loading round %d: %w", round, err)
		}
		if err := printReceipt(w, receipt, flags.json); err != nil {
			return err
		}
		if flags.verify {
			return receipt.Verify()
		}
		return nil
	}
	draws, err := db.Draws(flags.limit)
	if err != nil {
		return fmt.Errorf("loading draws: %w", err)
	}
	if flags.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(draws)
	}
	return printDraws(w, draws)
}

func historyCommand() *cobra.Command {
	var flags historyFlags
	cmd := &cobra.Command{
		Use:   "history [round]",
		Short: "Show past draws, or the full receipt of a single round",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				return errors.New("no config found in context")
			}
			return historyRun(cmd.OutOrStdout(), cfg, flags, args)
		},
	}
	cmd.Flags().IntVarP(&flags.limit, "limit", "n", 20, "maximum number of draws to show")
	cmd.Flags().BoolVar(&flags.json, "json", false, "output JSON")
	cmd.Flags().BoolVar(&flags.verify, "verify", false, "exit with an error if the receipt does not verify")
	return cmd
}
