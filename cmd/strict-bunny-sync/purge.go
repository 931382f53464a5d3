package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/yuya-takeyama/strict-bunny-sync/pkg/bunny"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/syncerr"
)

func newPurgeURLCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-url URL",
		Short: "Purge one URL from the CDN cache",
		Long:  `Purges URL from every edge location. A trailing * purges everything below it.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := bunny.NewPurgeClient(a.apiKey(), a.purgeBaseURL, nil)
			if err != nil {
				return err
			}
			if err := client.PurgeURL(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Purged %s\n", args[0])
			return nil
		},
	}
}

func newPurgeZoneCommand(a *app) *cobra.Command {
	var cacheTag string

	cmd := &cobra.Command{
		Use:   "purge-zone PULL_ZONE_ID",
		Short: "Purge the whole cache of a pull zone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return syncerr.Configuration("pull zone id", fmt.Errorf("invalid pull zone id %q: %w", args[0], err))
			}

			client, err := bunny.NewPurgeClient(a.apiKey(), a.purgeBaseURL, nil)
			if err != nil {
				return err
			}
			if err := client.PurgeZone(cmd.Context(), id, cacheTag); err != nil {
				return err
			}

			if cacheTag != "" {
				fmt.Fprintf(a.stdout, "Purged pull zone %d (cache tag %s)\n", id, cacheTag)
			} else {
				fmt.Fprintf(a.stdout, "Purged pull zone %d\n", id)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cacheTag, "cache-tag", "", "Only purge responses carrying this cache tag")

	return cmd
}
