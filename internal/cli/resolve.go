package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/righteousgambit/SenateTranscript/internal/output"
	"github.com/righteousgambit/SenateTranscript/internal/stream"
)

func NewResolveCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the live stream URL without recording",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := output.NewFormatter(os.Stdout)

			res, err := deps.App.Resolver.Resolve(cmd.Context())
			if errors.Is(err, stream.ErrNotInSession) {
				f.Info("Senate is not in session")
				return nil
			}
			if err != nil {
				return err
			}

			f.ResolvedStream(res.Descriptor.StreamID(), res.PlayableURL)
			for i, candidate := range stream.Candidates(res.Descriptor) {
				if candidate == res.PlayableURL {
					f.CandidateStatus(i+1, candidate, true, "")
					break
				}
				f.CandidateStatus(i+1, candidate, false, "not reachable")
			}
			return nil
		},
	}
}
