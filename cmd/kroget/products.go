package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/krogetapp/kroget/internal/domain/models"
)

var (
	searchLocation string
	searchLimit    int
	locationsZip   string
)

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "Catalog product commands",
}

var productsSearchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search catalog products by term and location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		locationID, err := a.resolveLocationID(searchLocation)
		if err != nil {
			return err
		}
		candidates, err := a.resolver.Resolve(cmd.Context(), args[0], locationID, searchLimit)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(candidates)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "PRODUCT ID\tUPC\tBRAND\tDESCRIPTION\tPRICE\n")
		for _, c := range candidates {
			price := ""
			if c.Price != nil {
				price = fmt.Sprintf("%.2f", *c.Price)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.ProductID, c.UPC, c.Brand, c.Description, price)
		}
		return w.Flush()
	},
}

var locationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "Store location commands",
}

var locationsSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Find store locations near a zip code",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		if locationsZip == "" {
			return fmt.Errorf("provide --zip for location search")
		}
		token, err := a.tokens.GetToken(cmd.Context(), models.ScopeProduct)
		if err != nil {
			return err
		}
		locations, err := a.client.SearchLocations(cmd.Context(), token, locationsZip, searchLimit)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(locations)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "LOCATION ID\tNAME\tADDRESS\tCITY\tSTATE\tZIP\n")
		for _, loc := range locations {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				loc.LocationID, loc.Name, loc.Address.AddressLine1, loc.Address.City, loc.Address.State, loc.Address.ZipCode)
		}
		return w.Flush()
	},
}

func init() {
	productsSearchCmd.Flags().StringVar(&searchLocation, "location", "", "location id (defaults to the stored default)")
	productsSearchCmd.Flags().IntVar(&searchLimit, "limit", 5, "maximum results")
	locationsSearchCmd.Flags().StringVar(&locationsZip, "zip", "", "zip code to search near")
	locationsSearchCmd.Flags().IntVar(&searchLimit, "limit", 5, "maximum results")

	productsCmd.AddCommand(productsSearchCmd)
	locationsCmd.AddCommand(locationsSearchCmd)
}
