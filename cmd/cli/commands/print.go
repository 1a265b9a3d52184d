package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/livekit/livekit-roomview/pkg/types"
)

func PrintJSON(w io.Writer, obj interface{}) {
	txt, _ := json.MarshalIndent(obj, "", "  ")
	_, _ = fmt.Fprintln(w, string(txt))
}

func printDevices(w io.Writer, devices []types.DeviceDescriptor) {
	table := tablewriter.NewWriter(w)
	table.SetRowLine(true)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Kind", "Label", "ID"})
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_CENTER, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
	})
	for _, d := range devices {
		table.Append([]string{string(d.Kind), d.Label, d.ID})
	}
	table.Render()
}
