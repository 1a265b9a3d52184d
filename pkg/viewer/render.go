package viewer

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/livekit/protocol/livekit"

	"github.com/livekit/livekit-roomview/pkg/participantstate"
	"github.com/livekit/livekit-roomview/pkg/roomstate"
	"github.com/livekit/livekit-roomview/pkg/stage"
	"github.com/livekit/livekit-roomview/pkg/types"
	"github.com/livekit/livekit-roomview/pkg/visibleset"
)

const clearScreen = "\033[H\033[2J"

// Renderer draws a stage view as text tables.
type Renderer struct {
	out   io.Writer
	clear bool
}

func NewRenderer(out io.Writer, clear bool) *Renderer {
	return &Renderer{out: out, clear: clear}
}

// Render writes view. tileState resolves the projected state of a participant.
func (r *Renderer) Render(state roomstate.RoomState, view stage.View, tileState func(types.Participant) participantstate.State) {
	if r.clear {
		_, _ = io.WriteString(r.out, clearScreen)
	}

	if view.Layout == stage.LayoutFallback {
		_, _ = fmt.Fprintf(r.out, "[%s]\n", view.Fallback)
		return
	}

	_, _ = fmt.Fprintf(r.out, "room: %s  layout: %s  participants: %d  audio tracks: %d\n",
		state.Room.Name(),
		view.Layout,
		len(state.Participants),
		len(state.AudioTracks),
	)
	if view.NeedsAudioStart {
		_, _ = io.WriteString(r.out, "audio playback is blocked, press 'a' to start audio\n")
	}

	switch view.Layout {
	case stage.LayoutGrid:
		r.renderGrid(state, view.Grid, tileState)
	default:
		r.renderStage(state, view, tileState)
	}
}

func (r *Renderer) renderGrid(state roomstate.RoomState, w visibleset.Window, tileState func(types.Participant) participantstate.State) {
	_, _ = fmt.Fprintf(r.out, "grid %dx%d (%d of %d shown)\n", w.Columns, w.Rows, w.Len(), len(state.Participants))

	table := r.newTable("Tile")
	for i, p := range w.Participants {
		row := 0
		col := 0
		if w.Columns > 0 {
			row, col = i/w.Columns+1, i%w.Columns+1
		}
		table.Append(append([]string{fmt.Sprintf("%d,%d", row, col)}, tileRow(state, tileState(p))...))
	}
	table.Render()
}

func (r *Renderer) renderStage(state roomstate.RoomState, view stage.View, tileState func(types.Participant) participantstate.State) {
	main := tileState(view.Main)
	if view.ScreenShare != nil {
		_, _ = fmt.Fprintf(r.out, "main: %s is sharing their screen (%s)\n", main.DisplayName, view.ScreenShare.Track.SID())
	} else {
		_, _ = fmt.Fprintf(r.out, "main: %s (%s)\n", main.DisplayName, view.MainOrientation)
	}

	table := r.newTable("")
	for _, p := range view.Sidebar {
		marker := ""
		if p.SID() == view.Main.SID() {
			marker = "*"
		}
		table.Append(append([]string{marker}, tileRow(state, tileState(p))...))
	}
	table.Render()
}

func (r *Renderer) newTable(first string) *tablewriter.Table {
	table := tablewriter.NewWriter(r.out)
	table.SetRowLine(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{
		first, "Participant", "Speaking", "Mic", "Camera", "Quality", "Bitrate", "Joined",
	})
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_CENTER, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_CENTER, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
	})
	return table
}

func tileRow(state roomstate.RoomState, s participantstate.State) []string {
	speaking := ""
	if s.IsSpeaking {
		speaking = "yes"
		if state.IsActiveSpeaker(s.SID) {
			speaking = "active"
		}
	}

	joined := ""
	if p := state.Participant(s.SID); p != nil && !p.JoinedAt().IsZero() {
		joined = humanize.Time(p.JoinedAt())
	}

	return []string{
		s.DisplayName,
		speaking,
		trackStatus(s.Microphone, s.IsAudioMuted),
		cameraStatus(s),
		qualityString(s.ConnectionQuality),
		s.BitrateString(),
		joined,
	}
}

func trackStatus(pub types.TrackPublication, muted bool) string {
	switch {
	case pub == nil:
		return "-"
	case muted:
		return "muted"
	case !pub.IsSubscribed():
		return "on"
	default:
		return "live"
	}
}

func cameraStatus(s participantstate.State) string {
	status := trackStatus(s.Camera, s.IsVideoMuted)
	if s.Camera == nil || s.IsVideoMuted {
		return status
	}
	if w, h := s.Camera.Dimensions(); w > 0 && h > 0 {
		status = fmt.Sprintf("%s %dx%d", status, w, h)
	}
	return status
}

func qualityString(q livekit.ConnectionQuality) string {
	return strings.ToLower(q.String())
}
