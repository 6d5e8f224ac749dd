package adapters

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hyperterse/tablescope/core/domain"
	"github.com/hyperterse/tablescope/core/infrastructure/logging"
)

// ProfileCheck is the outcome of connecting to one named profile.
type ProfileCheck struct {
	Name    string
	Kind    domain.BackendKind
	Tables  int
	Elapsed time.Duration
	Err     error
}

// CheckProfiles connects to every profile in parallel, lists its tables and closes
// it again. Results come back sorted by name; failures never cancel siblings.
func CheckProfiles(ctx context.Context, profiles map[string]domain.ConnectionDescriptor, opts Options) []ProfileCheck {
	if len(profiles) == 0 {
		return nil
	}

	log := logging.New("adapter")
	log.Debugf("Checking %d connection profile(s)", len(profiles))

	var (
		mu      sync.Mutex
		results = make([]ProfileCheck, 0, len(profiles))
	)
	g, gctx := errgroup.WithContext(ctx)
	for name, desc := range profiles {
		g.Go(func() error {
			res := checkProfile(gctx, name, desc, opts)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results
}

func checkProfile(ctx context.Context, name string, desc domain.ConnectionDescriptor, opts Options) ProfileCheck {
	log := logging.New(fmt.Sprintf("adapter:%s", name))
	start := time.Now()
	res := ProfileCheck{Name: name, Kind: desc.Normalize().Kind}

	a, err := Open(ctx, desc, opts)
	if err != nil {
		res.Err = err
		res.Elapsed = time.Since(start)
		log.Debugf("Profile check failed: %v", err)
		return res
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			log.Warnf("Error closing adapter: %v", cerr)
		}
	}()

	tables, err := a.ListTables(ctx)
	res.Elapsed = time.Since(start)
	if err != nil {
		res.Err = err
		return res
	}
	res.Tables = len(tables)
	return res
}

// CheckErrors joins every failed check into one error, or nil.
func CheckErrors(results []ProfileCheck) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name, r.Err))
		}
	}
	return errors.Join(errs...)
}
