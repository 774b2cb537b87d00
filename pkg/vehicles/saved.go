package vehicles

import (
	"context"
	"encoding/json"

	"github.com/Combine-Capital/imoto/pkg/cache"
	"github.com/Combine-Capital/imoto/pkg/errors"
	"github.com/Combine-Capital/imoto/pkg/logging"
	"github.com/Combine-Capital/imoto/pkg/remote"
)

// GetSavedVehicles returns the listings userID has saved. Saved rows whose
// listing no longer exists are skipped.
func (r *Repository) GetSavedVehicles(ctx context.Context, userID string, forceRefresh bool) []Vehicle {
	if userID == "" {
		return []Vehicle{}
	}
	key := r.cache.Key(cache.KindSavedVehicles, userID)
	vs, err := read(ctx, r, key, forceRefresh, func(ctx context.Context) ([]Vehicle, error) {
		rows, err := r.remote.FetchList(ctx, TableSaved, remote.Filter{
			Where:  []remote.Condition{remote.Eq("user_id", userID)},
			Select: SavedColumns,
		})
		if err != nil {
			return nil, err
		}
		out := make([]Vehicle, 0, len(rows))
		for _, raw := range rows {
			var saved savedRecord
			if err := json.Unmarshal(raw, &saved); err != nil {
				return nil, errors.Wrap(err, "decode saved vehicle")
			}
			if saved.Vehicles == nil {
				continue
			}
			out = append(out, mapRecord(*saved.Vehicles))
		}
		return out, nil
	})
	if err != nil {
		return []Vehicle{}
	}
	return vs
}

// SaveVehicle adds vehicleID to userID's saved vehicles.
func (r *Repository) SaveVehicle(ctx context.Context, userID, vehicleID string) error {
	if userID == "" || vehicleID == "" {
		return errors.NewInvalidInput("saved_vehicle", "user id and vehicle id are required")
	}

	_, err := r.remote.Create(ctx, TableSaved, map[string]string{
		"user_id":    userID,
		"vehicle_id": vehicleID,
	})
	if err != nil && !mayHaveApplied(err) {
		return errors.Wrap(err, "save vehicle")
	}
	r.invalidate(r.cache.Key(cache.KindSavedVehicles, userID))
	if err != nil {
		return errors.Wrap(err, "save vehicle")
	}

	r.logger.Info().Str(logging.UserID, userID).Str(logging.VehicleID, vehicleID).Msg("vehicle saved")
	return nil
}

// UnsaveVehicle removes vehicleID from userID's saved vehicles. Removing a
// vehicle that was not saved is not an error.
func (r *Repository) UnsaveVehicle(ctx context.Context, userID, vehicleID string) error {
	if userID == "" || vehicleID == "" {
		return errors.NewInvalidInput("saved_vehicle", "user id and vehicle id are required")
	}

	n, err := r.remote.DeleteWhere(ctx, TableSaved,
		remote.Eq("user_id", userID),
		remote.Eq("vehicle_id", vehicleID),
	)
	if err != nil && !mayHaveApplied(err) {
		return errors.Wrap(err, "unsave vehicle")
	}
	r.invalidate(r.cache.Key(cache.KindSavedVehicles, userID))
	if err != nil {
		return errors.Wrap(err, "unsave vehicle")
	}

	r.logger.Info().
		Str(logging.UserID, userID).
		Str(logging.VehicleID, vehicleID).
		Int(logging.Count, n).
		Msg("vehicle unsaved")
	return nil
}

// IsVehicleSaved reports whether userID has saved vehicleID. It is not
// cached, and a failed lookup reports false.
func (r *Repository) IsVehicleSaved(ctx context.Context, userID, vehicleID string) bool {
	if userID == "" || vehicleID == "" {
		return false
	}
	rows, err := r.remote.FetchList(ctx, TableSaved, remote.Filter{
		Where: []remote.Condition{
			remote.Eq("user_id", userID),
			remote.Eq("vehicle_id", vehicleID),
		},
		Select: "id",
		Limit:  1,
	})
	if err != nil {
		r.logger.Error().Err(err).Str(logging.UserID, userID).Str(logging.VehicleID, vehicleID).Msg("saved vehicle lookup failed")
		return false
	}
	return len(rows) > 0
}
