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
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

// enqueueCommands pushes orders onto the main settlement queue.
func enqueueCommands(b *royaltyInstance) *cobra.Command {
	var operator string

	cmd := &cobra.Command{
		Use:   "enqueue <order_id>...",
		Short: "enqueue orders for royalty settlement",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			for _, orderID := range args {
				if err := b.royalty.Enqueue(ctx, orderID, operator); err != nil {
					log.Printf("failed to enqueue %s: %v", orderID, err)
					continue
				}
				fmt.Printf("enqueued %s\n", orderID)
			}
		},
	}
	cmd.Flags().StringVar(&operator, "operator", "cli", "operator recorded with the queue entry")

	return cmd
}

// retryCommands runs a manual retry of a FAILED settlement record.
func retryCommands(b *royaltyInstance) *cobra.Command {
	var operator string

	cmd := &cobra.Command{
		Use:   "retry <record_id>",
		Short: "manually retry a failed settlement record",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			result, err := b.royalty.ManualRetry(context.Background(), args[0], operator)
			if err != nil {
				log.Fatalf("retry failed: %v", err)
			}

			data, err := json.MarshalIndent(result, "", "    ")
			if err != nil {
				log.Fatalf("Error printing record: %v\n", err)
			}
			fmt.Println(string(data))
		},
	}
	cmd.Flags().StringVar(&operator, "operator", "", "operator requesting the retry")
	_ = cmd.MarkFlagRequired("operator")

	return cmd
}
