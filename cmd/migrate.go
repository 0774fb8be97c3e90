/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
Package main provides the CLI commands for managing database migrations of the settlement engine.
This includes commands for applying and rolling back migrations.
*/

package main

import (
	"database/sql"
	"fmt"
	"log"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"

	"github.com/paysplit/royalty"
	"github.com/paysplit/royalty/database"
)

const migrationSchema = "royalty"

// migrateCommands creates the root command for migration-related operations.
func migrateCommands(b *royaltyInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "run royalty database migrations",
	}

	cmd.AddCommand(migrateCommand(b, "up", migrate.Up))
	cmd.AddCommand(migrateCommand(b, "down", migrate.Down))

	return cmd
}

// openMigrationDB connects and makes sure the schema holding the migration table exists.
func openMigrationDB(b *royaltyInstance) (*sql.DB, error) {
	db, err := database.ConnectDB(b.cnf.DataSource.Dns)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("CREATE SCHEMA IF NOT EXISTS " + migrationSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	migrate.SetSchema(migrationSchema)
	return db, nil
}

func migrateCommand(b *royaltyInstance, use string, direction migrate.MigrationDirection) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("migrate %s", use),
		Run: func(cmd *cobra.Command, args []string) {
			migrations := migrate.EmbedFileSystemMigrationSource{
				FileSystem: royalty.SQLFiles,
				Root:       "sql",
			}

			db, err := openMigrationDB(b)
			if err != nil {
				log.Printf("Error connecting to database: %v", err)
				return
			}
			defer db.Close()

			n, err := migrate.Exec(db, "postgres", migrations, direction)
			if err != nil {
				log.Printf("Error migrating %s: %v", use, err)
				return
			}
			if direction == migrate.Up {
				fmt.Printf("Applied %d migrations!\n", n)
			} else {
				fmt.Printf("Rolled back %d migrations!\n", n)
			}
		},
	}

	return cmd
}
