package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <url>",
		Short: "Print the stored status and recent checks of a link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(cmd)
			if err != nil {
				return err
			}
			defer c.close()

			if c.mongo == nil {
				return eris.New("history needs db.connection in the config")
			}

			ctx := cmd.Context()
			status, err := c.mongo.GetLinkStatus(ctx, args[0])
			if err != nil {
				return err
			}
			if status == nil {
				return eris.Errorf("%s was never checked", args[0])
			}
			records, err := c.mongo.GetHistory(ctx, args[0], limit)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]interface{}{
				"status":  status,
				"history": records,
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of recent checks to print")
	return cmd
}
