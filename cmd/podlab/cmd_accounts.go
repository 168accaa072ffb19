package main

import (
	"github.com/spf13/cobra"

	"podlab/internal/journal"
	"podlab/internal/lab"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage the demo accounts and pods",
}

var accountsProvisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create the manifest's accounts and pods on the running server",
	Long: `Submits the manifest's email/password/pod registrations to the
external server's account API. Accounts that already exist are left
alone, so re-running is safe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadManifest()
		if err != nil {
			return err
		}

		j, err := openJournal(m, newRunID())
		if err != nil {
			return err
		}
		defer j.Close()

		client := lab.NewAccountClient(m.ServerURL(), logger)
		results, err := client.ProvisionAll(cmd.Context(), m.Accounts)
		for _, res := range results {
			action := journal.ActionAccountCreate
			if !res.Created {
				action = journal.ActionAccountSkip
			}
			j.Record(cmd.Context(), action, res.Account.Email, true, nil, map[string]any{
				"pod":   res.Account.Pod,
				"webid": res.WebID,
			})
		}
		if err != nil {
			j.Record(cmd.Context(), journal.ActionAccountCreate, "", false, err, nil)
			return err
		}
		cmd.Printf("%d account(s) ready\n", len(results))
		return nil
	},
}

func init() {
	accountsCmd.AddCommand(accountsProvisionCmd)
	rootCmd.AddCommand(accountsCmd)
}
