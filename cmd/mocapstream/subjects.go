package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mocapstream/mocapstream"
)

func subjectsCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "subjects",
		Short: "List subjects and segments on the stream",
		Long: `Connect to the tracking server and list every subject with its
segments, then disconnect.

Example:
  mocapstream subjects --server=192.168.1.50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubjects(timeout)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Overall query timeout")

	return cmd
}

func runSubjects(timeout time.Duration) error {
	cfg, err := clientConfig("pull")
	if err != nil {
		return err
	}

	client, err := mocapstream.New(cfg)
	if err != nil {
		return err
	}
	defer client.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		return err
	}

	sess := client.Session()
	if err := sess.EnableSegmentData(ctx); err != nil {
		return err
	}
	if err := sess.SetStreamMode(ctx, mocapstream.ClientPull); err != nil {
		return err
	}
	// One frame so the server has subject data to report.
	if _, err := sess.GetFrame(ctx); err != nil {
		return err
	}

	subjects, err := sess.GetSubjectCount(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%d subject(s)\n", subjects)

	for i := 0; i < subjects; i++ {
		name, err := sess.GetSubjectName(ctx, i)
		if err != nil {
			return err
		}
		segments, err := sess.GetSegmentCount(ctx, name)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%d segment(s))\n", name, segments)

		for j := 0; j < segments; j++ {
			segment, err := sess.GetSegmentName(ctx, name, j)
			if err != nil {
				return err
			}
			fmt.Printf("  %s\n", segment)
		}
	}
	return nil
}
