package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/gracechapel/backend/internal/database"
	"github.com/gracechapel/backend/internal/models"
)

var exportCmd = &cobra.Command{
	Use:       "export [members|events]",
	Short:     "Export records as CSV or JSON",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"members", "events"},
	RunE: func(cmd *cobra.Command, args []string) error {
		out := io.Writer(os.Stdout)
		if outPath != "" {
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}

		switch args[0] {
		case "members":
			return exportMembers(out)
		case "events":
			return exportEvents(out)
		default:
			return fmt.Errorf("unknown entity %q", args[0])
		}
	},
}

func exportMembers(out io.Writer) error {
	var members []models.Member
	if err := database.DB.Order("name ASC").Find(&members).Error; err != nil {
		return err
	}

	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(members)
	}

	w := csv.NewWriter(out)
	if err := w.Write([]string{"id", "name", "email", "phone", "role", "active"}); err != nil {
		return err
	}
	for _, m := range members {
		err := w.Write([]string{m.ID, m.Name, m.Email, m.Phone, m.Role, strconv.FormatBool(m.Active)})
		if err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func exportEvents(out io.Writer) error {
	var events []models.Event
	if err := database.DB.Order("starts_at ASC").Find(&events).Error; err != nil {
		return err
	}

	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	}

	w := csv.NewWriter(out)
	if err := w.Write([]string{"id", "title", "location", "starts_at", "ends_at", "recurring"}); err != nil {
		return err
	}
	for _, e := range events {
		endsAt := ""
		if e.EndsAt != nil {
			endsAt = e.EndsAt.Format(time.RFC3339)
		}
		err := w.Write([]string{
			e.ID, e.Title, e.Location, e.StartsAt.Format(time.RFC3339), endsAt,
			strconv.FormatBool(e.Recurring),
		})
		if err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
