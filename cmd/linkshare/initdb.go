package main

import (
	"fmt"

	"linkshare/internal/config"
	"linkshare/internal/store"

	"github.com/spf13/cobra"
)

var initDBFlags struct {
	configFile string
	dbPath     string
	reset      bool
}

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the links table",
	Long: `Create the links table if it does not exist.

With --reset the table is dropped first and every stored link is lost.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(initDBFlags.configFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("db") {
			cfg.Database.Path = initDBFlags.dbPath
		}

		st, err := store.Open(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer st.Close()

		if initDBFlags.reset {
			err = st.Reset(cmd.Context())
		} else {
			err = st.Init(cmd.Context())
		}
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Initialized the database.")
		return nil
	},
}

func init() {
	f := initDBCmd.Flags()
	f.StringVarP(&initDBFlags.configFile, "config", "c", "", "Path to "+config.FileName)
	f.StringVar(&initDBFlags.dbPath, "db", "", "Path to SQLite database")
	f.BoolVar(&initDBFlags.reset, "reset", false, "Drop existing links before creating the table")
}
