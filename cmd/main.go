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

package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/paysplit/royalty"
	"github.com/paysplit/royalty/config"
	"github.com/paysplit/royalty/database"
	"github.com/paysplit/royalty/gateway"
	"github.com/paysplit/royalty/internal/cache"
	"github.com/paysplit/royalty/internal/notification"
	redis_db "github.com/paysplit/royalty/internal/redis-db"
)

// Royalty represents the CLI application, encapsulating the root Cobra command.
type Royalty struct {
	cmd *cobra.Command
}

// royaltyInstance holds the engine and the connections it was built on.
type royaltyInstance struct {
	royalty     *royalty.Royalty
	cnf         *config.Configuration
	redis       *redis_db.Redis
	asynqClient *asynq.Client
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and builds the engine before any command runs.
func preRun(app *royaltyInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(*configFile)
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}
		app.cnf = cnf

		if !needsEngine(cmd) {
			return nil
		}

		if err := setupRoyalty(app); err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}
		return nil
	}
}

// needsEngine reports whether cmd talks to the settlement engine. Migrations
// only need the database and config only prints.
func needsEngine(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "migrate", "config":
			return false
		}
	}
	return true
}

// postRun releases the redis connections opened by preRun.
func postRun(app *royaltyInstance) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		if app.asynqClient != nil {
			_ = app.asynqClient.Close()
		}
		if app.redis != nil {
			_ = app.redis.Close()
		}
	}
}

// setupRoyalty connects to redis and postgres and wires the settlement engine.
func setupRoyalty(app *royaltyInstance) error {
	cfg := app.cnf

	redisClient, err := redis_db.NewRedisClient([]string{cfg.Redis.Dns}, cfg.Redis.SkipTLSVerify)
	if err != nil {
		return fmt.Errorf("error connecting to redis: %v", err)
	}
	app.redis = redisClient

	payeeCache := cache.NewCache(redisClient.Client(), cfg.Cache.Size, time.Duration(cfg.Cache.TTL)*time.Second)
	db, err := database.NewDataSource(cfg, payeeCache)
	if err != nil {
		return fmt.Errorf("error getting datasource: %v", err)
	}

	asynqOpt, err := redis_db.AsynqOpt(cfg.Redis.Dns, cfg.Redis.SkipTLSVerify)
	if err != nil {
		return fmt.Errorf("error parsing redis url: %v", err)
	}
	app.asynqClient = asynq.NewClient(asynqOpt)

	engine, err := royalty.NewRoyalty(db, redisClient.Client(), gateway.NewClient(cfg.Gateway), royalty.NewAlertQueue(app.asynqClient, cfg.Queue))
	if err != nil {
		return fmt.Errorf("error creating royalty engine: %v", err)
	}
	app.royalty = engine
	return nil
}

// NewCLI creates the root command with its subcommands.
func NewCLI() *Royalty {
	var configFile string
	b := &royaltyInstance{}

	var rootCmd = &cobra.Command{
		Use:   "royalty",
		Short: "Asynchronous royalty settlement engine",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./royalty.json", "Configuration file for the settlement engine")

	rootCmd.PersistentPreRunE = preRun(b, &configFile)
	rootCmd.PersistentPostRun = postRun(b)

	rootCmd.AddCommand(serverCommands(b))
	rootCmd.AddCommand(workerCommands(b))
	rootCmd.AddCommand(migrateCommands(b))
	rootCmd.AddCommand(enqueueCommands(b))
	rootCmd.AddCommand(retryCommands(b))
	rootCmd.AddCommand(configCommands(b))

	return &Royalty{cmd: rootCmd}
}

func (w Royalty) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
