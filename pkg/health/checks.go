package health

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Combine-Capital/imoto/pkg/errors"
	"github.com/Combine-Capital/imoto/pkg/kvstore"
	"github.com/Combine-Capital/imoto/pkg/remote"
)

// ProbeKey is the key StoreChecker writes and removes. It sits outside any
// cache namespace so stats and clears never see it.
const ProbeKey = "__imoto_health_probe"

// StoreChecker verifies that store accepts a write, returns it, and deletes it.
func StoreChecker(store kvstore.Store) Checker {
	return CheckerFunc(func(ctx context.Context) error {
		want := strconv.FormatInt(time.Now().UnixNano(), 10)

		if err := store.SetItem(ProbeKey, want); err != nil {
			return errors.Wrap(err, "store write")
		}
		defer func() { _ = store.RemoveItem(ProbeKey) }()

		got, ok, err := store.GetItem(ProbeKey)
		if err != nil {
			return errors.Wrap(err, "store read")
		}
		if !ok || got != want {
			return errors.NewCorrupt(ProbeKey, fmt.Sprintf("read back %q, wrote %q", got, want), nil)
		}
		return ctx.Err()
	})
}

// RemoteChecker verifies that svc answers a one-row read of kind.
func RemoteChecker(svc remote.DataService, kind string) Checker {
	return CheckerFunc(func(ctx context.Context) error {
		_, err := svc.FetchList(ctx, kind, remote.Filter{Select: "id", Limit: 1})
		return err
	})
}
