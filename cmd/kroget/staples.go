package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/krogetapp/kroget/internal/domain/models"
	"github.com/krogetapp/kroget/internal/repository/file"
)

var (
	stapleList     string
	stapleTerm     string
	stapleQuantity int
	stapleModality string
	stapleProduct  string
	staplePosition int
)

var staplesCmd = &cobra.Command{
	Use:   "staples",
	Short: "Manage reusable staple definitions",
}

var staplesAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a staple to a list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		term := stapleTerm
		if term == "" {
			term = args[0]
		}
		staple := models.Staple{
			Name:               args[0],
			SearchTerm:         term,
			Quantity:           stapleQuantity,
			Modality:           models.ParseModality(stapleModality),
			PreferredProductID: stapleProduct,
		}
		if err := a.staples.AddStaple(stapleList, staple); err != nil {
			return err
		}
		fmt.Printf("Added staple %q\n", staple.Name)
		return nil
	},
}

var staplesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the staples in a list",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		list, err := a.staples.List(stapleList)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(list)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "NAME\tTERM\tQTY\tMODALITY\tPREFERRED\n")
		for _, s := range list.Staples {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", s.Name, s.SearchTerm, s.Quantity, s.Modality, s.PreferredProductID)
		}
		return w.Flush()
	},
}

var staplesRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a staple from a list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		if err := a.staples.RemoveStaple(stapleList, args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed staple %q\n", args[0])
		return nil
	},
}

var staplesSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Update a staple's term, quantity, modality or preferred product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		update := file.StapleUpdate{}
		if cmd.Flags().Changed("term") {
			update.SearchTerm = &stapleTerm
		}
		if cmd.Flags().Changed("quantity") {
			update.Quantity = &stapleQuantity
		}
		if cmd.Flags().Changed("modality") {
			modality := models.ParseModality(stapleModality)
			update.Modality = &modality
		}
		if cmd.Flags().Changed("product") {
			update.PreferredProductID = &stapleProduct
		}
		if err := a.staples.UpdateStaple(stapleList, args[0], update); err != nil {
			return err
		}
		fmt.Printf("Updated staple %q\n", args[0])
		return nil
	},
}

var staplesMoveCmd = &cobra.Command{
	Use:   "move <name>",
	Short: "Reposition a staple within its list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		if err := a.staples.MoveStaple(stapleList, args[0], staplePosition); err != nil {
			return err
		}
		fmt.Printf("Moved staple %q to position %d\n", args[0], staplePosition)
		return nil
	},
}

func init() {
	staplesCmd.PersistentFlags().StringVar(&stapleList, "list", "", "staple list name (defaults to the active list)")

	staplesAddCmd.Flags().StringVar(&stapleTerm, "term", "", "catalog search term (defaults to the staple name)")
	staplesAddCmd.Flags().IntVar(&stapleQuantity, "quantity", 1, "quantity to keep stocked")
	staplesAddCmd.Flags().StringVar(&stapleModality, "modality", "PICKUP", "fulfillment modality: PICKUP, DELIVERY or SHIP")
	staplesAddCmd.Flags().StringVar(&stapleProduct, "product", "", "preferred product id to pin")

	staplesSetCmd.Flags().StringVar(&stapleTerm, "term", "", "catalog search term")
	staplesSetCmd.Flags().IntVar(&stapleQuantity, "quantity", 1, "quantity to keep stocked")
	staplesSetCmd.Flags().StringVar(&stapleModality, "modality", "", "fulfillment modality")
	staplesSetCmd.Flags().StringVar(&stapleProduct, "product", "", "preferred product id")

	staplesMoveCmd.Flags().IntVar(&staplePosition, "to", 0, "target position, zero-based")

	staplesCmd.AddCommand(staplesAddCmd, staplesListCmd, staplesRemoveCmd, staplesSetCmd, staplesMoveCmd)
}

var listsCmd = &cobra.Command{
	Use:   "lists",
	Short: "Manage named staple lists",
}

var listsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new staple list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		if err := a.staples.CreateList(args[0]); err != nil {
			return err
		}
		fmt.Printf("Created list %q\n", args[0])
		return nil
	},
}

var listsRenameCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename a staple list",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		if err := a.staples.RenameList(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Renamed list %q to %q\n", args[0], args[1])
		return nil
	},
}

var listsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a staple list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		if err := a.staples.DeleteList(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted list %q\n", args[0])
		return nil
	},
}

var listsUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Mark a list as active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		if err := a.staples.SetActiveList(args[0]); err != nil {
			return err
		}
		fmt.Printf("Active list is now %q\n", args[0])
		return nil
	},
}

var listsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show all lists and the active marker",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		lists, err := a.staples.Lists()
		if err != nil {
			return err
		}
		active, _ := a.staples.ActiveListName()
		if flagJSON {
			return printJSON(map[string]any{"lists": lists, "activeList": active})
		}
		for _, list := range lists {
			marker := " "
			if list.Name == active {
				marker = "*"
			}
			fmt.Printf("%s %s (%d staples)\n", marker, list.Name, len(list.Staples))
		}
		return nil
	},
}

func init() {
	listsCmd.AddCommand(listsCreateCmd, listsRenameCmd, listsDeleteCmd, listsUseCmd, listsShowCmd)
}
