package commands

import (
	"github.com/spf13/cobra"

	log "github.com/sirupsen/logrus"

	"gamechat/internal/config"
	"gamechat/internal/storage"
	"gamechat/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		dbCfg := database.DefaultConfig()
		dbCfg.Driver = cfg.Database.Driver
		dbCfg.DSN = cfg.Database.DSN
		dbCfg.MaxConnectAttempts = cfg.Database.MaxConnectAttempts
		dbCfg.ReconnectDelay = cfg.Database.ReconnectDelay

		gateway, err := storage.Connect(dbCfg)
		if err != nil {
			return err
		}
		defer func() { _ = gateway.Close() }()

		manager := database.NewMigrationManager(gateway.DB(), dbCfg.Driver)
		if err := manager.ApplyMigrations(); err != nil {
			return err
		}

		validator := database.NewSchemaValidator(gateway.DB(), dbCfg.Driver)
		if err := validator.ValidateTablesExist(); err != nil {
			return err
		}

		log.Info("migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
