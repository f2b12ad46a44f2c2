package catalog

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fenwicklabs/circd/internal/gateway"
	"github.com/fenwicklabs/circd/internal/ils"
	"github.com/fenwicklabs/circd/internal/osrf"
)

// Backend methods used by the catalog service.
const (
	methodOrgTreeRetrieve  = "open-ils.actor.org_unit.full_tree.retrieve"
	methodCopyTreeRetrieve = "open-ils.search.asset.copy_tree.retrieve"
	methodCopyByBarcode    = "open-ils.search.asset.copy.fleshed.retrieve_by_barcode"
)

const orgTreeCacheKey = "org-tree"

// Service provides catalog lookups over the gateway with short-TTL
// caching for org and item details.
type Service struct {
	gw        *gateway.Gateway
	reg       *osrf.Registry
	orgCache  *Cache
	itemCache *Cache
	logger    *zap.Logger
}

// Config sizes the service's caches.
type Config struct {
	OrgTTL     time.Duration
	ItemTTL    time.Duration
	MaxEntries int
}

// NewService creates a catalog service.
func NewService(gw *gateway.Gateway, reg *osrf.Registry, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.OrgTTL <= 0 {
		cfg.OrgTTL = 5 * time.Minute
	}
	if cfg.ItemTTL <= 0 {
		cfg.ItemTTL = 30 * time.Second
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1024
	}
	return &Service{
		gw:        gw,
		reg:       reg,
		orgCache:  NewCache(cfg.OrgTTL, 8),
		itemCache: NewCache(cfg.ItemTTL, cfg.MaxEntries),
		logger:    logger,
	}
}

// OrgTree returns the org hierarchy, cached whole under a single key.
func (s *Service) OrgTree(ctx context.Context) (*OrgTree, error) {
	if cached, ok := s.orgCache.Get(orgTreeCacheKey); ok {
		return cached.(*OrgTree), nil
	}

	value, err := s.gw.Invoke(ctx, "open-ils.actor", methodOrgTreeRetrieve)
	if err != nil {
		return nil, fmt.Errorf("retrieving org tree: %w", err)
	}
	units, err := s.flattenOrgTree(value)
	if err != nil {
		return nil, err
	}
	tree := NewOrgTree(units)
	s.orgCache.Set(orgTreeCacheKey, tree)
	return tree, nil
}

// OrgName resolves an org unit's display name through the cached tree.
func (s *Service) OrgName(ctx context.Context, id int64) (string, error) {
	tree, err := s.OrgTree(ctx)
	if err != nil {
		return "", err
	}
	name, ok := tree.Name(id)
	if !ok {
		return "", fmt.Errorf("org unit %d not found", id)
	}
	return name, nil
}

// CopyByBarcode retrieves a fleshed copy, cached for the item TTL.
func (s *Service) CopyByBarcode(ctx context.Context, barcode string) (*ils.Copy, error) {
	if cached, ok := s.itemCache.Get("copy:" + barcode); ok {
		return cached.(*ils.Copy), nil
	}

	value, err := s.gw.Invoke(ctx, "open-ils.search", methodCopyByBarcode, barcode)
	if err != nil {
		return nil, err
	}
	o, ok := osrf.AsObject(value)
	if !ok {
		return nil, fmt.Errorf("copy %s: unexpected reply shape", barcode)
	}
	c, err := ils.DecodeCopy(o, s.reg)
	if err != nil {
		return nil, err
	}
	s.itemCache.Set("copy:"+barcode, c)
	return c, nil
}

// RecordSummary retrieves a bib record's copy tree and aggregates it
// under the caller's org scope.
func (s *Service) RecordSummary(ctx context.Context, recordID int64, p ScopeParams) (Summary, error) {
	cacheKey := "summary:" + strconv.FormatInt(recordID, 10) +
		":" + strconv.FormatInt(p.ScopeOrg, 10) + ":" + strconv.Itoa(p.MaxDepth)
	if cached, ok := s.itemCache.Get(cacheKey); ok {
		return cached.(Summary), nil
	}

	value, err := s.gw.Invoke(ctx, "open-ils.search", methodCopyTreeRetrieve, recordID, p.ScopeOrg)
	if err != nil {
		return Summary{}, fmt.Errorf("retrieving copy tree for record %d: %w", recordID, err)
	}

	raw, ok := value.([]any)
	if !ok {
		return Summary{}, fmt.Errorf("record %d: unexpected copy tree shape", recordID)
	}
	volumes := make([]*ils.Volume, 0, len(raw))
	for _, rv := range raw {
		o, ok := osrf.AsObject(rv)
		if !ok {
			continue
		}
		v, err := ils.DecodeVolume(o, s.reg)
		if err != nil {
			s.logger.Warn("skipping undecodable volume",
				zap.Int64("record", recordID), zap.Error(err))
			continue
		}
		volumes = append(volumes, v)
	}

	tree, err := s.OrgTree(ctx)
	if err != nil {
		// Scope filtering needs the tree; without a scope the walk can
		// proceed with org names omitted.
		if p.ScopeOrg != 0 {
			return Summary{}, err
		}
		tree = nil
	}

	summary := Aggregate(volumes, tree, p)
	s.itemCache.Set(cacheKey, summary)
	return summary, nil
}

// flattenOrgTree walks the nested org tree reply into a flat unit list.
// The backend fleshes children under a "children" key.
func (s *Service) flattenOrgTree(root any) ([]*ils.OrgUnit, error) {
	var units []*ils.OrgUnit
	var walk func(v any) error
	walk = func(v any) error {
		o, ok := osrf.AsObject(v)
		if !ok {
			return nil
		}
		u, err := ils.DecodeOrgUnit(o, s.reg)
		if err != nil {
			return err
		}
		units = append(units, u)
		table, _ := s.reg.Lookup("aou")
		if children, ok := osrf.FieldValue(o, "children", table).([]any); ok {
			for _, child := range children {
				if err := walk(child); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("org tree reply contained no org units")
	}
	return units, nil
}
