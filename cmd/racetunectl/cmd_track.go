package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"racetune/internal/track"
)

func newTrackCmd() *cobra.Command {
	var (
		segments int
		seed     int64
		outPath  string
	)
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Generate a synthetic circuit as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := track.Generate(segments, seed)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(t)
			if err != nil {
				return err
			}
			if outPath == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "track written path=%s segments=%d length=%.1f\n", outPath, t.Len(), t.TotalLength())
			return nil
		},
	}
	cmd.Flags().IntVar(&segments, "segments", track.DefaultSegments, "segment count")
	cmd.Flags().Int64Var(&seed, "seed", track.DefaultSeed, "generator seed")
	cmd.Flags().StringVar(&outPath, "out", "", "write to a file instead of stdout")
	return cmd
}
