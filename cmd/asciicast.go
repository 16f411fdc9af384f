/*
Copyright © 2021 Joseph Lewis <joseph@josephlewis.net>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/josephlewis42/rsh/core"
	"github.com/josephlewis42/rsh/core/wire"
	"github.com/spf13/cobra"
)

var crlf = regexp.MustCompile(`\r?\n`)

// asciicastCmd converts a transcript to the asciicast format
var asciicastCmd = &cobra.Command{
	Use:   "asciicast INPUT > OUTPUT.cast",
	Short: "Convert a recorded session to asciicast format.",
	Long:  `Convert a recorded session to asciicast (asciinema) format.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		fd, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer fd.Close()

		return writeAsciicast(fd, cmd.OutOrStdout(), filepath.Base(args[0]), idleTimeLimit)
	},
}

// writeAsciicast converts the events in recording to asciicast v2. Pauses are
// capped at maxIdle.
func writeAsciicast(recording io.Reader, w io.Writer, title string, maxIdle time.Duration) error {
	encoder := json.NewEncoder(w)

	if err := encoder.Encode(map[string]interface{}{
		"version":   2,
		"width":     80,
		"height":    24,
		"timestamp": 0,
		"title":     title,
		"env": map[string]interface{}{
			"TERM":  "xterm-256color",
			"SHELL": "/bin/sh",
		},
	}); err != nil {
		return err
	}

	var prev time.Time
	var elapsed time.Duration
	return core.ReplayCallback(recording, func(event *core.LogEvent) error {
		if !prev.IsZero() {
			pause := event.Time.Sub(prev)
			if pause > maxIdle {
				pause = maxIdle
			}
			if pause > 0 {
				elapsed += pause
			}
		}
		prev = event.Time

		eventType := ""
		switch event.EventType {
		case core.EventTypeInput:
			eventType = "i"
		case core.EventTypeOutput:
			eventType = "o"
		default:
			return nil
		}

		data := bytes.ReplaceAll(event.Data, []byte{wire.EOF}, nil)
		if len(data) == 0 {
			return nil
		}

		replaced := crlf.ReplaceAllString(string(data), "\r\n")
		return encoder.Encode([]interface{}{elapsed.Seconds(), eventType, replaced})
	})
}

func init() {
	rootCmd.AddCommand(asciicastCmd)

	asciicastCmd.Flags().DurationVarP(&idleTimeLimit, "idle-time-limit", "i", 3*time.Second, "Maximum time output can be idle. (e.g. 3s, 2m, 100ms)")
}
