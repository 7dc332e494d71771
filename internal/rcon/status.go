package rcon

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"rconbridge/internal/model"
)

var playerCountRE = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)

// Status probes the server and collects a best-effort status summary. The
// "list" round trip decides online/offline; player counts and version are
// optional extras and their failures are ignored.
func (c *Client) Status(ctx context.Context) model.ServerStatus {
	st := model.ServerStatus{Players: "0/0", Version: "unknown"}

	listOut, err := c.ExecuteCommand(ctx, probeCommand)
	if err != nil {
		var rerr *Error
		if errors.As(err, &rerr) {
			st.Error = rerr.UserMessage()
		} else {
			st.Error = err.Error()
		}
		return st
	}
	st.Online = true

	if m := playerCountRE.FindStringSubmatch(listOut); m != nil {
		st.Players = m[1] + "/" + m[2]
	}

	if versionOut, err := c.ExecuteCommand(ctx, "version"); err == nil && versionOut != "" {
		st.Version = firstLine(versionOut)
	}
	return st
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}
