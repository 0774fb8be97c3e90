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
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.elastic.co/apm/module/apmlogrus/v2"

	"github.com/paysplit/royalty"
	"github.com/paysplit/royalty/config"
	redis_db "github.com/paysplit/royalty/internal/redis-db"
)

func init() {
	logrus.AddHook(&apmlogrus.Hook{})
}

// initializeQueues weights the critical alert queue above the regular one.
func initializeQueues(conf *config.Configuration) map[string]int {
	return map[string]int{
		conf.Queue.CriticalAlertQueue: 3,
		conf.Queue.AlertQueue:         1,
	}
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisOption, err := redis_db.AsynqOpt(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(
		redisOption,
		asynq.Config{
			Concurrency: conf.Queue.WorkerConcurrency,
			Queues:      queues,
			Logger:      logrus.StandardLogger(),
		},
	), nil
}

func initializeTaskHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(royalty.TypeRoyaltyAlert, royalty.ProcessAlert)
}

func startMonitoring(conf *config.Configuration) error {
	redisOption, err := redis_db.AsynqOpt(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return err
	}
	h := asynqmon.New(asynqmon.Options{
		RootPath:     "/monitoring",
		RedisConnOpt: redisOption,
	})

	go func() {
		monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
		log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
		if err := http.ListenAndServe(monitoringAddr, h); err != nil {
			log.Fatalf("could not start asynqmon server: %v", err)
		}
	}()
	return nil
}

// workerCommands defines the "workers" command. It runs the settlement
// processor loops and the asynq server delivering operator alerts.
func workerCommands(b *royaltyInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start the settlement processor and alert workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			conf := b.cnf
			shutdown, err := initializeObservability(ctx, conf, "ROYALTY_WORKERS")
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()

			processor := royalty.NewSettlementProcessor(b.royalty)
			processor.Start(ctx)
			defer processor.Stop()

			srv, err := initializeWorkerServer(conf, initializeQueues(conf))
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(mux)

			if err := startMonitoring(conf); err != nil {
				log.Printf("monitoring disabled: %v", err)
			}

			if err := srv.Start(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}

			<-ctx.Done()
			logrus.Info("shutting down workers")
			srv.Shutdown()
		},
	}

	return cmd
}
