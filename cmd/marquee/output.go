package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// emit prints v as indented JSON when --json is set, otherwise runs render.
func (c *commandContext) emit(cmd *cobra.Command, v any, render func()) error {
	if c.jsonOutput() {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	render()
	return nil
}
