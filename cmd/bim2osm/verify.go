package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"bim2osm/internal/osmdata"

	"github.com/spf13/cobra"
)

func verifyCmd() *cobra.Command {
	var (
		f      convertFlags
		pbf    string
		radius float64
	)

	cmd := &cobra.Command{
		Use:   "verify [model.ifc]",
		Short: "List mapped buildings near the georeferenced site of a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !f.verbose {
				log.SetOutput(io.Discard)
			}
			res, err := convertFile(args[0], f)
			if err != nil {
				return err
			}

			file, err := os.Open(pbf)
			if err != nil {
				return err
			}
			defer file.Close()

			buildings, err := osmdata.NearbyBuildings(file, res.Origin, radius)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "site origin %.7f, %.7f: %d buildings within %.0f m\n",
				res.Origin.Lat, res.Origin.Lon, len(buildings), radius)
			for _, b := range buildings {
				fmt.Fprintf(out, "  way %d %-30q %7.1f m\n", b.ID, b.Name, b.Distance)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pbf, "pbf", "", "OSM PBF extract covering the site")
	cmd.Flags().Float64Var(&radius, "radius", 100, "search radius in metres")
	cmd.Flags().BoolVar(&f.lenientDirections, "lenient-directions", false, "treat a missing RefDirection as the x axis")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "log conversion steps")
	_ = cmd.MarkFlagRequired("pbf")
	return cmd
}
