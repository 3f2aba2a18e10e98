package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/frahmantamala/loan-desk/internal"
	"github.com/frahmantamala/loan-desk/internal/access"
	"github.com/frahmantamala/loan-desk/internal/reservation"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with a small catalog, the default permission flags and their holders. Safe to run repeatedly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := initializeDependencies()
		if err != nil {
			return err
		}
		defer deps.Close()

		return seedData(cmd.Context(), deps.Reservations, deps.Access, cmd.OutOrStdout())
	},
}

var seedItems = []reservation.RegisterItemInput{
	{ID: "laptop-01", Name: "Laptop", Available: 1},
	{ID: "camera-01", Name: "Camera", Available: 1},
	{ID: "cables", Name: "HDMI cable", Available: 10},
	{ID: "tripods", Name: "Tripod", Available: 3},
}

var seedFlags = []access.CreateFlagDTO{
	{
		Name:        "student",
		Description: "can borrow equipment",
		Actions:     []access.Action{access.ActionCheckout},
	},
	{
		Name:        "desk",
		Description: "front desk staff",
		Actions:     []access.Action{access.ActionCheckout, access.ActionCheckin, access.ActionViewReservations},
	},
	{
		Name:        "admin",
		Description: "full administrator",
		Actions: []access.Action{
			access.ActionCheckout,
			access.ActionCheckin,
			access.ActionViewReservations,
			access.ActionManageFlags,
			access.ActionManageRoles,
		},
	},
}

// seedAssignments maps user ids onto flag names.
var seedAssignments = map[string][]string{
	"alice": {"student"},
	"bob":   {"student"},
	"desk":  {"desk"},
	"admin": {"admin"},
}

func seedData(ctx context.Context, reservations *reservation.Service, acl *access.Service, out io.Writer) error {
	for _, in := range seedItems {
		if _, err := reservations.GetItem(ctx, in.ID); err == nil {
			fmt.Fprintln(out, "item already exists:", in.ID)
			continue
		} else if !errors.Is(err, internal.ErrItemNotFound) {
			return err
		}
		if _, err := reservations.RegisterItem(ctx, in); err != nil {
			return fmt.Errorf("failed to register item %s: %w", in.ID, err)
		}
		fmt.Fprintln(out, "Seeded item:", in.ID)
	}

	existing, err := acl.ListFlags(ctx)
	if err != nil {
		return err
	}
	flagIDs := make(map[string]string, len(seedFlags))
	for _, f := range existing {
		flagIDs[f.Name] = f.ID
	}

	for _, dto := range seedFlags {
		if _, ok := flagIDs[dto.Name]; ok {
			fmt.Fprintln(out, "flag already exists:", dto.Name)
			continue
		}
		flag, err := acl.CreatePermissionFlag(ctx, dto)
		if err != nil {
			return fmt.Errorf("failed to create flag %s: %w", dto.Name, err)
		}
		flagIDs[flag.Name] = flag.ID
		fmt.Fprintln(out, "Seeded flag:", flag.Name)
	}

	for userID, names := range seedAssignments {
		for _, name := range names {
			if err := acl.Promote(ctx, userID, flagIDs[name]); err != nil {
				return fmt.Errorf("failed to promote %s to %s: %w", userID, name, err)
			}
		}
		fmt.Fprintln(out, "Granted flags to", userID)
	}

	return nil
}
