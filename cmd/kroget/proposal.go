package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/krogetapp/kroget/internal/domain/models"
	"github.com/krogetapp/kroget/internal/service/auth"
	"github.com/krogetapp/kroget/internal/service/cart"
	proposalsvc "github.com/krogetapp/kroget/internal/service/proposal"
)

var (
	proposeLocation string
	proposeLists    []string
	proposePin      bool

	applyProposal string
	applyConfirm  bool
	applyDryRun   bool

	sentLimit int
)

var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Resolve staples against the catalog and save a reviewable proposal",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		locationID, err := a.resolveLocationID(proposeLocation)
		if err != nil {
			return err
		}
		lists, err := a.gatherLists(proposeLists)
		if err != nil {
			return err
		}

		proposal, err := a.builder.Build(cmd.Context(), lists, locationID)
		if err != nil {
			return err
		}

		if proposePin {
			proposalsvc.Pin(proposal, a.staples, a.logger)
		}

		path, err := a.proposals.Save(proposal)
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(map[string]any{"proposal": proposal, "path": path})
		}
		printProposal(proposal)
		fmt.Printf("\nSaved to %s\n", path)
		fmt.Println("Review it, then run `kroget apply --confirm` to send it to your cart.")
		return nil
	},
}

func printProposal(p *models.Proposal) {
	fmt.Printf("Proposal %s (location %s, created %s)\n\n", p.ID, p.LocationID, p.CreatedAt.Format(time.RFC3339))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "STAPLE\tPRODUCT\tQTY\tMODALITY\tSTATUS\tNOTE\n")
	for _, line := range p.Lines {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			line.StapleName, line.ResolvedProductID, line.Quantity, line.Modality, line.ResolutionStatus, line.Note)
	}
	_ = w.Flush()
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a reviewed proposal to the remote cart",
	Long: `Diffs the proposal against the sent-items ledger and sends only the
incremental quantities, so applying the same proposal twice never doubles
the cart. Without --confirm the run is a dry run: the full per-line report
is computed and shown, but nothing is sent.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}

		var proposal *models.Proposal
		if applyProposal != "" {
			proposal, err = a.proposals.Load(applyProposal)
		} else {
			proposal, _, err = a.proposals.Latest()
		}
		if err != nil {
			return err
		}

		report, applyErr := a.engine.Apply(cmd.Context(), proposal, cart.Options{
			Confirmed: applyConfirm,
			DryRun:    applyDryRun,
		})
		if report != nil {
			if flagJSON {
				_ = printJSON(report)
			} else {
				printReport(report)
			}
		}
		if applyErr != nil {
			if errors.Is(applyErr, auth.ErrReauthRequired) {
				return fmt.Errorf("cart access needs authorization: run `kroget auth login` first")
			}
			return applyErr
		}
		if report.Failed() {
			return fmt.Errorf("one or more lines failed; see the report above")
		}
		return nil
	},
}

func printReport(report *models.ApplyReport) {
	mode := "APPLIED"
	if report.DryRun {
		mode = "DRY RUN"
	}
	fmt.Printf("Apply report for proposal %s (%s)\n\n", report.ProposalID, mode)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "STAPLE\tPRODUCT\tOUTCOME\tQTY SENT\tREASON\n")
	for _, line := range report.Lines {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			line.StapleName, line.ProductID, line.Outcome, line.QuantitySent, line.Reason)
	}
	_ = w.Flush()
}

var sentCmd = &cobra.Command{
	Use:   "sent",
	Short: "Show recent apply sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		sessions, err := a.ledger.Sessions(sentLimit)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(sessions)
		}
		for _, session := range sessions {
			fmt.Printf("%s  proposal %s  location %s  %d line(s)\n",
				session.FinishedAt.Format(time.RFC3339), session.ProposalID, session.LocationID, len(session.Lines))
			for _, line := range session.Lines {
				fmt.Printf("  %-20s %-16s %s\n", line.StapleName, line.Outcome, line.Reason)
			}
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Local preferences",
}

var configSetLocationCmd = &cobra.Command{
	Use:   "set-location <location-id>",
	Short: "Store the default location id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		settings, err := a.settings.Load()
		if err != nil {
			return err
		}
		settings.DefaultLocationID = args[0]
		if err := a.settings.Save(settings); err != nil {
			return err
		}
		fmt.Printf("Default location set to %s\n", args[0])
		return nil
	},
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check credentials and catalog connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}

		if _, err := a.tokens.GetToken(cmd.Context(), models.ScopeProduct); err != nil {
			fmt.Println("FAIL client credentials token")
			return err
		}
		fmt.Println("OK   client credentials token acquired")

		locationID, err := a.resolveLocationID("")
		if err != nil {
			fmt.Println("SKIP product search (no default location set)")
			return nil
		}
		candidates, err := a.resolver.Resolve(cmd.Context(), "milk", locationID, 1)
		if err != nil {
			fmt.Println("FAIL product search")
			return err
		}
		fmt.Printf("OK   product search returned %d item(s)\n", len(candidates))
		return nil
	},
}

func init() {
	proposeCmd.Flags().StringVar(&proposeLocation, "location", "", "location id (defaults to the stored default)")
	proposeCmd.Flags().StringSliceVar(&proposeLists, "lists", nil, "staple lists to include, in order (defaults to the active list)")
	proposeCmd.Flags().BoolVar(&proposePin, "pin", false, "pin each resolved product back onto its staple")

	applyCmd.Flags().StringVar(&applyProposal, "proposal", "", "path to a proposal file (defaults to the latest)")
	applyCmd.Flags().BoolVar(&applyConfirm, "confirm", false, "actually send mutations to the cart")
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "force the computation-only path even with --confirm")

	sentCmd.Flags().IntVar(&sentLimit, "limit", 10, "how many sessions to show")

	configCmd.AddCommand(configSetLocationCmd)
}
