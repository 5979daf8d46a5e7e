/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package main is the entry point of the credential issuance REST server.
package main

import (
	"github.com/spf13/cobra"
	"github.com/trustbloc/logutil-go/pkg/log"

	"github.com/trustmesh/vci/cmd/vci-rest/startcmd"
)

var logger = log.New("vci-rest")

func main() {
	rootCmd := &cobra.Command{
		Use: "vci-rest",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	rootCmd.AddCommand(startcmd.GetStartCmd())

	if err := rootCmd.Execute(); err != nil {
		logger.Fatal("Failed to run vci-rest", log.WithError(err))
	}
}
