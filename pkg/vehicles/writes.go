package vehicles

import (
	"context"
	"encoding/json"

	"github.com/Combine-Capital/imoto/pkg/cache"
	"github.com/Combine-Capital/imoto/pkg/errors"
	"github.com/Combine-Capital/imoto/pkg/logging"
)

// CreateVehicle validates data and creates a listing owned by userID.
func (r *Repository) CreateVehicle(ctx context.Context, data FormData, userID string) (*Vehicle, error) {
	if userID == "" {
		return nil, errors.NewInvalidInput("user_id", "required")
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}

	raw, err := r.remote.Create(ctx, TableVehicles, data.record(userID, r.now()))
	if err != nil {
		if mayHaveApplied(err) {
			r.InvalidateCaches(userID)
		}
		return nil, errors.Wrap(err, "create vehicle")
	}
	r.InvalidateCaches(userID)

	v, err := decodeVehicle(raw)
	if err != nil {
		return nil, err
	}
	r.logger.Info().Str(logging.VehicleID, v.ID).Str(logging.UserID, userID).Msg("vehicle created")
	return v, nil
}

// UpdateVehicle applies patch to the listing with id and returns the
// updated listing.
func (r *Repository) UpdateVehicle(ctx context.Context, id string, patch Patch) (*Vehicle, error) {
	if id == "" {
		return nil, errors.NewInvalidInput("id", "required")
	}
	owner := r.cachedOwner(id)

	raw, err := r.remote.Update(ctx, TableVehicles, id, patch.record(r.now()))
	if err != nil {
		if mayHaveApplied(err) {
			r.invalidateVehicle(id, owner)
		}
		return nil, errors.Wrapf(err, "update vehicle %s", id)
	}

	v, err := decodeVehicle(raw)
	if err != nil {
		r.invalidateVehicle(id, owner)
		return nil, err
	}
	if owner != "" && owner != v.UserID {
		r.InvalidateCaches(owner)
	}
	r.invalidateVehicle(id, v.UserID)

	r.logger.Info().Str(logging.VehicleID, id).Msg("vehicle updated")
	return v, nil
}

// DeleteVehicle removes the listing with id and reports whether it existed.
// The owner is looked up first so their caches can be invalidated.
func (r *Repository) DeleteVehicle(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, errors.NewInvalidInput("id", "required")
	}

	owner := r.cachedOwner(id)
	if owner == "" {
		owner = r.remoteOwner(ctx, id)
	}

	deleted, err := r.remote.Delete(ctx, TableVehicles, id)
	if err != nil {
		if mayHaveApplied(err) {
			r.invalidateVehicle(id, owner)
		}
		return false, errors.Wrapf(err, "delete vehicle %s", id)
	}
	r.invalidateVehicle(id, owner)

	r.logger.Info().
		Str(logging.VehicleID, id).
		Str(logging.UserID, owner).
		Bool("deleted", deleted).
		Msg("vehicle deleted")
	return deleted, nil
}

// InvalidateCaches removes the active listings and, when userID is set,
// that user's own and saved vehicle lists.
func (r *Repository) InvalidateCaches(userID string) {
	keys := []string{r.cache.Key(cache.KindVehicles, StatusActive)}
	if userID != "" {
		keys = append(keys,
			r.cache.Key(cache.KindUserVehicles, userID),
			r.cache.Key(cache.KindSavedVehicles, userID),
		)
	}
	r.invalidate(keys...)
	r.logger.Debug().Str(logging.UserID, userID).Msg("vehicle caches invalidated")
}

// invalidateVehicle is InvalidateCaches plus the detail entry for id.
func (r *Repository) invalidateVehicle(id, userID string) {
	r.InvalidateCaches(userID)
	r.invalidate(r.cache.Key(cache.KindVehicleDetails, id))
}

// cachedOwner returns the owner of id from the detail cache, at any age.
func (r *Repository) cachedOwner(id string) string {
	v, ok := cache.GetWithMaxAge[*Vehicle](r.cache, r.cache.Key(cache.KindVehicleDetails, id), cache.NoExpiry)
	if !ok || v == nil {
		return ""
	}
	return v.UserID
}

// remoteOwner reads the owner of id straight from the backend. It bypasses
// the cache so no refresh of the row is scheduled.
func (r *Repository) remoteOwner(ctx context.Context, id string) string {
	raw, err := r.remote.FetchOne(ctx, TableVehicles, id)
	if err != nil {
		if !errors.IsNotFound(err) {
			r.logger.Warn().Err(err).Str(logging.VehicleID, id).Msg("owner lookup failed")
		}
		return ""
	}
	v, err := decodeVehicle(raw)
	if err != nil {
		return ""
	}
	return v.UserID
}

// mayHaveApplied reports whether a failed write could still have reached
// the database, as with a timeout or a lost response.
func mayHaveApplied(err error) bool {
	return errors.IsTemporary(err) || errors.IsPermanent(err)
}

func decodeVehicle(raw json.RawMessage) (*Vehicle, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, errors.Wrap(err, "decode vehicle")
	}
	v := mapRecord(rec)
	return &v, nil
}
