package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"bim2osm/internal/bim/catalog"
	"bim2osm/internal/converter"
	"bim2osm/internal/ifc"
	"bim2osm/internal/osmdata"

	"github.com/spf13/cobra"
)

type convertFlags struct {
	output            string
	geojson           string
	tags              string
	workers           int
	lenientDirections bool
	verbose           bool
}

func convertCmd() *cobra.Command {
	var f convertFlags

	cmd := &cobra.Command{
		Use:   "convert [model.ifc]",
		Short: "Convert an IFC model into an OSM file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !f.verbose {
				log.SetOutput(io.Discard)
			}
			return runConvert(cmd.OutOrStdout(), args[0], f)
		},
	}

	cmd.Flags().StringVarP(&f.output, "output", "o", "", "OSM output file (default: <model>.osm)")
	cmd.Flags().StringVar(&f.geojson, "geojson", "", "also write a GeoJSON feature collection")
	cmd.Flags().StringVar(&f.tags, "tags", "", "YAML file with the tags of each role")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "parallel element workers (default: GOMAXPROCS)")
	cmd.Flags().BoolVar(&f.lenientDirections, "lenient-directions", false, "treat a missing RefDirection as the x axis")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "log conversion steps")
	return cmd
}

// convertFile loads and converts one model
func convertFile(path string, f convertFlags) (*converter.Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	g, err := ifc.ParseSTEP(file)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	opts := converter.Options{Workers: f.workers, LenientDirections: f.lenientDirections}
	if f.tags != "" {
		tags, err := catalog.LoadTagCatalog(f.tags)
		if err != nil {
			return nil, err
		}
		opts.Tags = tags
	}
	return converter.New(opts).Convert(g)
}

func runConvert(out io.Writer, path string, f convertFlags) error {
	res, err := convertFile(path, f)
	if err != nil {
		return err
	}

	if f.output == "" {
		f.output = strings.TrimSuffix(path, filepath.Ext(path)) + ".osm"
	}
	if err := writeFile(f.output, func(w io.Writer) error { return osmdata.WriteOSM(w, res.Data) }); err != nil {
		return err
	}
	if f.geojson != "" {
		if err := writeFile(f.geojson, func(w io.Writer) error { return osmdata.WriteGeoJSON(w, res.Data) }); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "%s: %d nodes, %d ways from %d/%d elements\n",
		f.output, len(res.Data.Nodes), len(res.Data.Ways), res.Prepared, res.Classified)
	fmt.Fprintf(out, "origin %.7f, %.7f (%s, %s), %d levels\n",
		res.Origin.Lat, res.Origin.Lon, res.Units.Length, res.Units.Angle, len(res.Elevations))
	if res.Corrupt {
		fmt.Fprintf(out, "WARNING: %s\n", res.Message)
		for _, d := range res.Drops {
			fmt.Fprintf(out, "  #%d %s: %s\n", d.EntityID, d.Role, d.Reason)
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
