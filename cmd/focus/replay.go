package main

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-focus/pkg/protocol"
)

type replayOptions struct {
	addr     string
	token    string
	userID   string
	moduleID string
	section  string
	interval time.Duration
	loops    int
}

func newReplayCmd() *cobra.Command {
	o := &replayOptions{}

	cmd := &cobra.Command{
		Use:   "replay FRAME.jpg...",
		Short: "Stream JPEG frames to a running server and print the updates",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return replay(cmd.OutOrStdout(), o, args)
		},
	}
	cmd.Flags().StringVar(&o.addr, "addr", "localhost:5000", "server host:port")
	cmd.Flags().StringVar(&o.token, "token", "", "access token, when the server requires one")
	cmd.Flags().StringVar(&o.userID, "user-id", "replay-user", "user_id sent in start_tracking")
	cmd.Flags().StringVar(&o.moduleID, "module-id", "replay-module", "module_id sent in start_tracking")
	cmd.Flags().StringVar(&o.section, "section-id", "", "optional section_id")
	cmd.Flags().DurationVar(&o.interval, "interval", time.Second, "delay between frames")
	cmd.Flags().IntVar(&o.loops, "loops", 1, "times to replay the frame list")
	return cmd
}

func replay(out io.Writer, o *replayOptions, files []string) error {
	frames := make([][]byte, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		frames = append(frames, data)
	}

	u := url.URL{Scheme: "ws", Host: o.addr, Path: "/ws/tracking"}
	if o.token != "" {
		u.RawQuery = url.Values{"token": {o.token}}.Encode()
	}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u.String(), err)
	}
	defer conn.Close()

	done := make(chan error, 1)
	go func() {
		done <- printReplies(out, conn)
	}()

	send := func(msg *protocol.Message, err error) error {
		if err != nil {
			return err
		}
		data, err := msg.Bytes()
		if err != nil {
			return err
		}
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	if err := send(protocol.NewStartTrackingMessage(o.userID, o.moduleID, o.section)); err != nil {
		return err
	}
	for i := 0; i < o.loops; i++ {
		for _, frame := range frames {
			time.Sleep(o.interval)
			if err := send(protocol.NewVideoFrameMessage(frame)); err != nil {
				return err
			}
		}
	}
	if err := send(protocol.NewStopTrackingMessage()); err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-time.After(10 * time.Second):
		return fmt.Errorf("timed out waiting for tracking_stopped")
	}
}

// printReplies prints server messages until tracking stops.
func printReplies(out io.Writer, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			fmt.Fprintf(out, "unparseable message: %v\n", err)
			continue
		}

		switch msg.Type {
		case protocol.TypeTrackingUpdate:
			u, err := msg.GetTrackingUpdateData()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "focused=%-5v gaze=%-13s focused=%.1fs unfocused=%.1fs rate=%.1f%%\n",
				u.IsFocused, u.GazeDirection,
				u.Metrics.FocusedSeconds(), u.Metrics.UnfocusedSeconds(), u.Metrics.FocusPercentage)
		case protocol.TypeTrackingStopped:
			s, err := msg.GetTrackingStoppedData()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "stopped: total=%.1fs focused=%.1fs rate=%.1f%%\n",
				s.Metrics.TotalSeconds(), s.Metrics.FocusedSeconds(), s.Metrics.FocusPercentage)
			return nil
		case protocol.TypeError:
			e, err := msg.GetErrorData()
			if err != nil {
				return err
			}
			return fmt.Errorf("server error (%s): %s", e.Code, e.Message)
		default:
			fmt.Fprintf(out, "%s\n", msg.Type)
		}
	}
}
