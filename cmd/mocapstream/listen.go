package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mocapstream/mocapstream"
)

func listenCmd() *cobra.Command {
	var (
		mode   string
		count  uint64
		queue  int
		policy string
	)

	cmd := &cobra.Command{
		Use:   "listen [subject]",
		Short: "Print segment poses as frames arrive",
		Long: `Connect to the tracking server and print one line per segment as
frames arrive. With a subject argument, only that subject is printed.

Translations are in meters, rotations are X Y Z W quaternions.

Examples:
  mocapstream listen
  mocapstream listen subject01
  mocapstream listen --mode=push --count=100`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subject := ""
			if len(args) == 1 {
				subject = args[0]
			}
			return runListen(subject, mode, count, queue, policy)
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "pull", "Stream mode: pull or push")
	cmd.Flags().Uint64VarP(&count, "count", "n", 0, "Stop after this many frames (0 = run forever)")
	cmd.Flags().IntVar(&queue, "queue", 16, "Delivery queue capacity (0 = synchronous)")
	cmd.Flags().StringVar(&policy, "drop", "oldest", "Backpressure policy: oldest or block")

	return cmd
}

func runListen(subject, mode string, count uint64, queue int, policy string) error {
	cfg, err := clientConfig(mode)
	if err != nil {
		return err
	}
	cfg.QueueCapacity = queue
	switch policy {
	case "oldest":
		cfg.DropPolicy = mocapstream.DropOldest
	case "block":
		cfg.DropPolicy = mocapstream.Block
	default:
		return fmt.Errorf("invalid drop policy %q (want oldest or block)", policy)
	}
	cfg.OnError = func(err error) {
		fmt.Fprintf(os.Stderr, "stream error: %v\n", err)
	}

	client, err := mocapstream.New(cfg)
	if err != nil {
		return err
	}
	defer client.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	seen := uint64(0)
	err = client.Subscribe(mocapstream.SinkFunc(func(_ context.Context, f *mocapstream.Frame) {
		printFrame(f, subject)
		seen++
		if count > 0 && seen >= count {
			stop()
		}
	}))
	if err != nil {
		return err
	}

	if err := client.StartStreaming(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	client.Stop()

	st := client.Stats()
	fmt.Fprintf(os.Stderr, "received=%d delivered=%d dropped=%d decode_errors=%d reconnects=%d\n",
		st.FramesReceived, st.FramesDelivered, st.FramesDropped, st.DecodeErrors, st.Reconnects)

	if err := client.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func printFrame(f *mocapstream.Frame, subject string) {
	for _, sub := range f.Subjects {
		if subject != "" && sub.Name != subject {
			continue
		}
		for _, seg := range sub.Segments {
			if seg.Occluded() {
				fmt.Printf("frame=%d subject=%s segment=%s occluded\n", f.Seq, sub.Name, seg.Name)
				continue
			}
			t := seg.Pose.Translation
			q := seg.Pose.Rotation
			fmt.Printf("frame=%d subject=%s segment=%s t=(%.4f %.4f %.4f) q=(%.4f %.4f %.4f %.4f)\n",
				f.Seq, sub.Name, seg.Name, t.X, t.Y, t.Z, q.X, q.Y, q.Z, q.W)
		}
	}
}
