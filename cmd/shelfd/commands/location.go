package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/shelfd/shelfd/pkg/catalog"
	"github.com/shelfd/shelfd/pkg/catalog/models"
	"github.com/shelfd/shelfd/pkg/config"
)

var locationCmd = &cobra.Command{
	Use:   "location",
	Short: "Manage storage locations",
}

var locationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List storage locations",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCatalog()
		if err != nil {
			return err
		}
		defer store.Close()

		locations, err := store.ListLocations(cmd.Context())
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Name", "Backend", "URI", "Default"})
		for _, loc := range locations {
			table.Append([]string{loc.Name, loc.Backend, loc.URI, strconv.FormatBool(loc.Default)})
		}
		table.Render()
		return nil
	},
}

var (
	locationCreateURI     string
	locationCreateBackend string
	locationCreateDefault bool
)

var locationCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a storage location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCatalog()
		if err != nil {
			return err
		}
		defer store.Close()

		loc := &models.Location{
			Name:    args[0],
			URI:     locationCreateURI,
			Backend: locationCreateBackend,
			Default: locationCreateDefault,
		}
		if err := store.CreateLocation(cmd.Context(), loc); err != nil {
			return err
		}
		fmt.Printf("created location %q\n", loc.Name)
		return nil
	},
}

var locationSetDefaultCmd = &cobra.Command{
	Use:   "set-default <name>",
	Short: "Make a location the default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCatalog()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.SetDefaultLocation(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("location %q is now the default\n", args[0])
		return nil
	},
}

func openCatalog() (*catalog.GORMStore, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return catalog.New(&cfg.Database)
}

func init() {
	locationCreateCmd.Flags().StringVar(&locationCreateURI, "uri", "", "base URI of the location")
	locationCreateCmd.Flags().StringVar(&locationCreateBackend, "backend", "fs", "storage backend (fs, s3)")
	locationCreateCmd.Flags().BoolVar(&locationCreateDefault, "default", false, "make this the default location")
	locationCreateCmd.MarkFlagRequired("uri")

	locationCmd.AddCommand(locationListCmd)
	locationCmd.AddCommand(locationCreateCmd)
	locationCmd.AddCommand(locationSetDefaultCmd)
}
