package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shelfd/shelfd/pkg/catalog"
	"github.com/shelfd/shelfd/pkg/catalog/models"
	"github.com/shelfd/shelfd/pkg/config"
)

var (
	initLocationName string
	initLocationURI  string
	initBackend      string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration and the default storage location",
	Long: `Write a starter configuration file and create the default storage
location in the catalog. Run once before the first "shelfd serve".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.GetDefaultConfig()

		// Write the starter config file unless one already exists.
		path := cfgFile
		if path == "" {
			path = filepath.Join(config.ConfigDir(), "config.yaml")
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0644); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
		}

		store, err := catalog.New(&cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to open catalog: %w", err)
		}
		defer store.Close()

		if initLocationURI == "" {
			initLocationURI = filepath.Join(config.ConfigDir(), "data")
		}

		loc := &models.Location{
			Name:    initLocationName,
			URI:     initLocationURI,
			Backend: initBackend,
			Default: true,
		}
		if err := store.CreateLocation(cmd.Context(), loc); err != nil {
			if errors.Is(err, models.ErrDuplicateLocation) {
				fmt.Printf("location %q already exists\n", loc.Name)
				return nil
			}
			return err
		}

		fmt.Printf("created default location %q (%s) at %s\n", loc.Name, loc.Backend, loc.URI)
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initLocationName, "location", "default", "name of the default location")
	initCmd.Flags().StringVar(&initLocationURI, "uri", "", "base URI of the default location (default: <config dir>/data)")
	initCmd.Flags().StringVar(&initBackend, "backend", "fs", "storage backend for the default location (fs, s3)")
}
