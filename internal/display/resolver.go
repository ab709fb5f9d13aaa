package display

import (
	"context"
	"errors"
	"regexp"

	"github.com/tamias-pos/customer-display/internal/metrics"
	"github.com/tamias-pos/customer-display/pkg/global"
	"github.com/tamias-pos/customer-display/pkg/models"
	"go.uber.org/zap"
)

// NotFoundName replaces the store name when a display cannot be resolved.
const NotFoundName = "Store Not Found"

var shortCodePattern = regexp.MustCompile(`^\d{8}$`)

// IsShortCode reports whether ref is an 8-digit public store code rather than an internal id.
func IsShortCode(ref string) bool {
	return shortCodePattern.MatchString(ref)
}

// Resolution is the outcome of resolving a display route parameter.
type Resolution struct {
	Ref      string           `json:"ref"`
	Found    bool             `json:"found"`
	Store    models.Store     `json:"store"`
	Cashiers []models.Cashier `json:"cashiers"`
}

type Resolver struct {
	dir         Directory
	defaultName string
	log         *zap.Logger
}

func NewResolver(dir Directory, defaultName string, log *zap.Logger) *Resolver {
	return &Resolver{
		dir:         dir,
		defaultName: defaultName,
		log:         log.Named("resolver"),
	}
}

// Resolve maps ref to a store and its cashiers. Lookup failures of any kind end
// in a not-found resolution; they are logged here and never returned.
func (r *Resolver) Resolve(ctx context.Context, ref string) Resolution {
	res := Resolution{
		Ref:      ref,
		Store:    models.Store{Name: r.defaultName},
		Cashiers: []models.Cashier{},
	}
	if ref == "" {
		return r.notFound(res, "empty", nil)
	}

	path := "id"
	if IsShortCode(ref) {
		path = "short_code"

		lookupCtx, cancel := global.GetTimer(ctx)
		store, err := r.dir.StoreByDisplayID(lookupCtx, ref)
		cancel()
		if err != nil {
			return r.notFound(res, path, err)
		}
		res.Store = *store
	} else {
		res.Store.ID = ref

		lookupCtx, cancel := global.GetTimer(ctx)
		store, err := r.dir.StoreByID(lookupCtx, ref)
		cancel()
		switch {
		case err == nil:
			res.Store.Name = store.Name
			res.Store.DisplayID = store.DisplayID
		case errors.Is(err, models.ErrStoreNotFound):
			// the id is trusted as-is; the display keeps its default name
			r.log.Warn("store id has no store row", zap.String("store_id", ref))
		default:
			return r.notFound(res, path, err)
		}
	}

	lookupCtx, cancel := global.GetTimer(ctx)
	cashiers, err := r.dir.CashiersByStore(lookupCtx, res.Store.ID)
	cancel()
	if err != nil {
		return r.notFound(res, path, err)
	}
	if cashiers != nil {
		res.Cashiers = cashiers
	}

	res.Found = true
	metrics.Resolutions.WithLabelValues(path, "found").Inc()
	return res
}

func (r *Resolver) notFound(res Resolution, path string, err error) Resolution {
	if err != nil && !errors.Is(err, models.ErrStoreNotFound) {
		r.log.Error("store resolution failed", zap.String("ref", res.Ref), zap.Error(err))
	}
	metrics.Resolutions.WithLabelValues(path, "not_found").Inc()

	return Resolution{
		Ref:      res.Ref,
		Found:    false,
		Store:    models.Store{Name: NotFoundName},
		Cashiers: []models.Cashier{},
	}
}
