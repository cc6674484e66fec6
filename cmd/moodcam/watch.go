package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/teslashibe/go-moodcam/internal/config"
	"github.com/teslashibe/go-moodcam/internal/log"
)

var watchAddr string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Tail the reports of a running moodcam --web",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := reportsURL(watchAddr)
		if err != nil {
			return err
		}
		return watch(cmd.Context(), u, cmd.OutOrStdout())
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchAddr, "addr", "localhost"+config.DefaultWebAddr, "Dashboard address (host:port or URL)")
	rootCmd.AddCommand(watchCmd)
}

// reportsURL turns "host:port", "http://host:port" or a ws URL into the
// /ws/reports endpoint.
func reportsURL(addr string) (string, error) {
	if !strings.Contains(addr, "://") {
		addr = "ws://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("invalid address %q: %w", addr, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid address %q: unsupported scheme %s", addr, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid address %q: missing host", addr)
	}
	u.Path = "/ws/reports"
	return u.String(), nil
}

// watch prints one line per report until ctx is cancelled or the server
// goes away.
func watch(ctx context.Context, u string, out io.Writer) error {
	logger := log.Component("watch")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", u, err)
	}
	defer conn.Close()
	logger.Info("connected", "url", u)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		line, err := formatReport(data)
		if err != nil {
			logger.Warn("skipping message", "error", err)
			continue
		}
		fmt.Fprintln(out, line)
	}
}

// formatReport renders a /ws/reports message as "#seq time summary".
func formatReport(data []byte) (string, error) {
	if !gjson.ValidBytes(data) {
		return "", errors.New("not JSON")
	}
	r := gjson.ParseBytes(data)
	summary := r.Get("summary")
	if !summary.Exists() {
		return "", errors.New("no summary")
	}
	ts := r.Get("time").Time().Local().Format("15:04:05")
	return fmt.Sprintf("#%d %s %s", r.Get("seq").Int(), ts, summary.String()), nil
}
