package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rrucricket/attendance/pkg/geo"
)

var radiusOverride float64

var distanceCmd = &cobra.Command{
	Use:   "distance LAT LNG",
	Short: "Check a position against the configured ground",
	Long:  `Prints the Haversine distance from the configured ground and whether a check-in there would be accepted.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		claimed, err := parseCoordinate(args[0], args[1])
		if err != nil {
			return err
		}

		ground := geo.ReferenceLocation{
			Name:         cfg.Geofence.GroundName,
			Center:       geo.Coordinate{Latitude: cfg.Geofence.Latitude, Longitude: cfg.Geofence.Longitude},
			RadiusMeters: cfg.Geofence.RadiusMeters,
		}
		if radiusOverride > 0 {
			ground.RadiusMeters = radiusOverride
		}
		return printEvaluation(cmd.OutOrStdout(), claimed, ground)
	},
}

func parseCoordinate(lat, lng string) (geo.Coordinate, error) {
	var c geo.Coordinate
	var err error
	if c.Latitude, err = strconv.ParseFloat(lat, 64); err != nil {
		return c, fmt.Errorf("invalid latitude %q", lat)
	}
	if c.Longitude, err = strconv.ParseFloat(lng, 64); err != nil {
		return c, fmt.Errorf("invalid longitude %q", lng)
	}
	return c, c.Validate()
}

func printEvaluation(w io.Writer, claimed geo.Coordinate, ground geo.ReferenceLocation) error {
	res, err := geo.Evaluate(claimed, ground)
	if err != nil {
		return err
	}

	verdict := "rejected"
	if res.WithinRadius {
		verdict = "accepted"
	}
	_, err = fmt.Fprintf(w, "%s: %.2f m (%s), radius %s, %s\n",
		ground.Name, res.DistanceMeters, geo.FormatDistance(res.DistanceMeters),
		geo.FormatDistance(ground.RadiusMeters), verdict)
	return err
}

func init() {
	distanceCmd.Flags().Float64VarP(&radiusOverride, "radius", "r", 0, "Override the configured radius in meters")
}
