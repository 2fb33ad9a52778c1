package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shelfd/shelfd/pkg/catalog"
	"github.com/shelfd/shelfd/pkg/config"
	"github.com/shelfd/shelfd/pkg/service"
	"github.com/shelfd/shelfd/pkg/storage"
	fsbackend "github.com/shelfd/shelfd/pkg/storage/fs"
	"github.com/shelfd/shelfd/pkg/storage/memory"
	s3backend "github.com/shelfd/shelfd/pkg/storage/s3"
)

var fixityPessimistic bool

var fixityCmd = &cobra.Command{
	Use:   "fixity",
	Short: "Run maintenance operations from the command line",
}

var fixityVerifyCmd = &cobra.Command{
	Use:   "verify <file-id>",
	Short: "Verify the checksum of one file instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := svc.VerifyChecksum(cmd.Context(), args[0], fixityPessimistic); err != nil {
			return err
		}

		file, err := svc.Store().GetFile(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		switch {
		case file.LastCheck == nil:
			fmt.Println("verification aborted (blob unreadable)")
		case *file.LastCheck:
			fmt.Println("checksum OK")
		default:
			fmt.Println("CHECKSUM MISMATCH")
		}
		return nil
	},
}

var migrateLocation string
var migratePostCheck bool

var fixityMigrateCmd = &cobra.Command{
	Use:   "migrate <file-id>",
	Short: "Migrate a file instance to another location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		return svc.MigrateFile(cmd.Context(), args[0], migrateLocation, migratePostCheck)
	},
}

var fixitySweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired multipart uploads and orphaned files",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		expired, err := svc.RemoveExpiredMultiparts(cmd.Context())
		if err != nil {
			return err
		}
		orphans, err := svc.ClearOrphanedFiles(cmd.Context(), nil)
		if err != nil {
			return err
		}
		fmt.Printf("removed %d expired uploads, %d orphaned files\n", expired, orphans)
		return nil
	},
}

// openService wires a service over the configured catalog and backends for
// one-shot CLI operations. Asynchronous steps run inline.
func openService(cmd *cobra.Command) (*service.Service, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := catalog.New(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	registry := storage.NewRegistry()
	registry.Register("fs", fsbackend.Opener())
	registry.Register("memory", memory.NewStore().Opener())
	if cfg.Storage.S3.Endpoint != "" || cfg.Storage.S3.Region != "" {
		client, err := s3backend.NewClient(cmd.Context(), cfg.Storage.S3)
		if err != nil {
			store.Close()
			return nil, nil, err
		}
		registry.Register("s3", s3backend.Opener(client, cfg.Storage.S3.Algo))
	}

	factory := storage.NewFactory(registry, cfg.Storage.PathDimensions, cfg.Storage.PathSplitLength)
	svc := service.New(store, factory, serviceConfig(cfg), nil)

	return svc, func() { store.Close() }, nil
}

func init() {
	fixityVerifyCmd.Flags().BoolVar(&fixityPessimistic, "pessimistic", false, "fail when the blob cannot be read")
	fixityMigrateCmd.Flags().StringVar(&migrateLocation, "location", "", "target location name")
	fixityMigrateCmd.Flags().BoolVar(&migratePostCheck, "post-fixity-check", false, "verify the copy after migration")
	fixityMigrateCmd.MarkFlagRequired("location")

	fixityCmd.AddCommand(fixityVerifyCmd)
	fixityCmd.AddCommand(fixityMigrateCmd)
	fixityCmd.AddCommand(fixitySweepCmd)
}
