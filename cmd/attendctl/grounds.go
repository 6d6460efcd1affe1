package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/rrucricket/attendance/pkg/geo"
)

var groundsCmd = &cobra.Command{
	Use:   "grounds",
	Short: "List or add grounds",
}

var groundsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored grounds",
	RunE: func(cmd *cobra.Command, args []string) error {
		const q = `SELECT id, name, latitude, longitude, radius_meters FROM grounds ORDER BY name`

		return withPool(cmd.Context(), func(pool *pgxpool.Pool) error {
			rows, err := pool.Query(cmd.Context(), q)
			if err != nil {
				return err
			}
			defer rows.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tLATITUDE\tLONGITUDE\tRADIUS")
			for rows.Next() {
				var g geo.ReferenceLocation
				if err := rows.Scan(&g.ID, &g.Name, &g.Center.Latitude, &g.Center.Longitude, &g.RadiusMeters); err != nil {
					return err
				}
				fmt.Fprintf(tw, "%d\t%s\t%.6f\t%.6f\t%s\n", g.ID, g.Name, g.Center.Latitude, g.Center.Longitude, geo.FormatDistance(g.RadiusMeters))
			}
			if err := rows.Err(); err != nil {
				return err
			}
			return tw.Flush()
		})
	},
}

var newGround geo.ReferenceLocation

var groundsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new ground",
	Long:  `Stores the ground by name. Existing grounds are never changed. Running attendance services pick it up on restart.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		newGround.Name = strings.TrimSpace(newGround.Name)
		if newGround.Name == "" {
			return fmt.Errorf("--name is required")
		}
		if err := newGround.Validate(); err != nil {
			return err
		}

		const q = `
			INSERT INTO grounds (name, latitude, longitude, radius_meters)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (name) DO NOTHING
			RETURNING id`

		return withPool(cmd.Context(), func(pool *pgxpool.Pool) error {
			g := newGround
			err := pool.QueryRow(cmd.Context(), q, g.Name, g.Center.Latitude, g.Center.Longitude, g.RadiusMeters).Scan(&g.ID)
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("ground %q already exists", g.Name)
			}
			if err != nil {
				return fmt.Errorf("save ground: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ground %q saved (id %d, radius %s)\n", g.Name, g.ID, geo.FormatDistance(g.RadiusMeters))
			return nil
		})
	},
}

func init() {
	groundsAddCmd.Flags().StringVar(&newGround.Name, "name", "", "Ground name")
	groundsAddCmd.Flags().Float64Var(&newGround.Center.Latitude, "lat", 0, "Latitude of the ground center")
	groundsAddCmd.Flags().Float64Var(&newGround.Center.Longitude, "lng", 0, "Longitude of the ground center")
	groundsAddCmd.Flags().Float64VarP(&newGround.RadiusMeters, "radius", "r", 100, "Acceptance radius in meters")
	_ = groundsAddCmd.MarkFlagRequired("lat")
	_ = groundsAddCmd.MarkFlagRequired("lng")

	groundsCmd.AddCommand(groundsListCmd, groundsAddCmd)
}
