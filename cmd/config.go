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
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/paysplit/royalty/config"
)

const redacted = "********"

// redactConfig returns a copy of cnf with credentials masked.
func redactConfig(cnf config.Configuration) config.Configuration {
	mask := func(s *string) {
		if *s != "" {
			*s = redacted
		}
	}
	mask(&cnf.Server.SecretKey)
	mask(&cnf.Gateway.Secret)
	mask(&cnf.DataSource.Dns)
	mask(&cnf.Redis.Dns)
	mask(&cnf.Notification.Slack.WebhookUrl)
	return cnf
}

func configCommands(b *royaltyInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "config outputs your instances computed configuration",
		Run: func(cmd *cobra.Command, args []string) {
			if b.cnf == nil {
				log.Fatal("Error getting config: not loaded")
			}

			data, err := json.MarshalIndent(redactConfig(*b.cnf), "", "    ")
			if err != nil {
				log.Fatalf("Error printing config: %v\n", err)
			}

			fmt.Println(string(data))
		},
	}
	return cmd
}
