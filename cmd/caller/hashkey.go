package main

import (
	"fmt"

	"frontdesk/pkg/auth"

	"github.com/spf13/cobra"
)

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key KEY",
	Short: "Print an Argon2id hash of KEY for SUPERVISOR_API_KEY",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashAPIKey(args[0])
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil
	},
}
