package conversion

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"bim2osm/internal/config"
	"bim2osm/internal/converter"
	"bim2osm/internal/ifc"
	"bim2osm/internal/model"
	"bim2osm/internal/osmdata"
	pg "bim2osm/internal/postgres"
	redis_client "bim2osm/internal/redis"
	"bim2osm/internal/service/storage"
	"bim2osm/internal/util"

	"github.com/dhconnelly/rtreego"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const (
	ConversionRedisKey = "conversion"
	InputHashRedisKey  = "conversion_hash"
)

var (
	ErrNotFound     = errors.New("conversion not found")
	ErrInvalidInput = errors.New("model cannot be loaded")
	ErrInvalidBound = errors.New("invalid bounding box")
)

type ConversionService struct {
	storage storage.Storage[string, *model.Conversion]

	opts      converter.Options
	optsMutex sync.RWMutex

	spatialIndex *rtreego.Rtree
	indexMutex   sync.RWMutex

	hashes    map[string]string // input hash -> conversion id
	unsaved   map[string]bool   // conversions not yet in PostgreSQL
	hashMutex sync.Mutex

	// one conversion per input hash at a time
	inflight singleflight.Group

	initialized bool
	initMutex   sync.RWMutex
}

var (
	conversionServiceInstance *ConversionService
	conversionServiceOnce     sync.Once
)

// GetConversionService returns the singleton instance of ConversionService.
func GetConversionService() *ConversionService {
	conversionServiceOnce.Do(func() {
		conversionServiceInstance = NewConversionService()
	})
	return conversionServiceInstance
}

// NewConversionService creates a service with empty storage
func NewConversionService() *ConversionService {
	return &ConversionService{
		storage:      storage.NewMemoryStorage[string, *model.Conversion](),
		spatialIndex: rtreego.NewTree(2, 25, 50),
		hashes:       make(map[string]string),
		unsaved:      make(map[string]bool),
	}
}

// SetOptions replaces the converter options used by later conversions
func (s *ConversionService) SetOptions(opts converter.Options) {
	s.optsMutex.Lock()
	defer s.optsMutex.Unlock()
	s.opts = opts
}

// InitService loads stored conversions from PostgreSQL when it is configured
func (s *ConversionService) InitService(ctx context.Context) error {
	s.initMutex.Lock()
	defer s.initMutex.Unlock()

	if s.initialized {
		return nil
	}

	log.Println("Initializing ConversionService...")
	startTime := time.Now()

	if pg.GetDB() == nil {
		log.Println("PostgreSQL not configured, starting with empty storage")
		s.initialized = true
		return nil
	}

	// Step 1: Load conversions and their ways
	log.Println("Loading conversions from PostgreSQL...")
	conversions, err := s.loadAllConversionsFromPG(ctx)
	if err != nil {
		return fmt.Errorf("failed to load conversions from PostgreSQL: %w", err)
	}
	log.Printf("Loaded %d conversions from PostgreSQL in %v", len(conversions), time.Since(startTime))

	// Step 2: Put them into memory and the spatial index
	for _, c := range conversions {
		s.store(c, false)
	}

	log.Printf("Initialization complete: %d conversions in memory, took %v",
		s.storage.Count(), time.Since(startTime))

	s.initialized = true
	return nil
}

func (s *ConversionService) loadAllConversionsFromPG(ctx context.Context) ([]*model.Conversion, error) {
	var rows []*model.ConversionPG
	if err := pg.GetDB().WithContext(ctx).Preload("Ways").Find(&rows).Error; err != nil {
		return nil, err
	}

	conversions := make([]*model.Conversion, 0, len(rows))
	for _, row := range rows {
		c, err := model.ConversionFromPG(row)
		if err != nil {
			log.Printf("Skipping unreadable conversion: %v", err)
			continue
		}
		conversions = append(conversions, c)
	}
	return conversions, nil
}

func (s *ConversionService) loadConversionFromPG(ctx context.Context, id string) (*model.Conversion, error) {
	var row model.ConversionPG
	err := pg.GetDB().WithContext(ctx).Preload("Ways").First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return model.ConversionFromPG(&row)
}

// Convert loads a STEP model and converts it. An input that was converted
// before is answered from storage and reported as cached.
func (s *ConversionService) Convert(ctx context.Context, name string, data []byte) (*model.Conversion, bool, error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	if c, ok := s.lookupHash(ctx, hash); ok {
		log.Printf("Input %s already converted as %s", hash[:12], c.ID)
		return c, true, nil
	}

	converted := false
	v, err, _ := s.inflight.Do(hash, func() (any, error) {
		// an earlier call for the same input may have finished meanwhile
		if c, ok := s.lookupHash(ctx, hash); ok {
			return c, nil
		}
		converted = true
		return s.convert(name, hash, data)
	})
	if err != nil {
		return nil, false, err
	}
	c := v.(*model.Conversion)
	if !converted {
		log.Printf("Input %s already converted as %s", hash[:12], c.ID)
	}
	return c, !converted, nil
}

func (s *ConversionService) convert(name, hash string, data []byte) (*model.Conversion, error) {
	g, err := ifc.ParseSTEP(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	s.optsMutex.RLock()
	opts := s.opts
	s.optsMutex.RUnlock()

	res, err := converter.New(opts).Convert(g)
	if err != nil {
		return nil, err
	}

	c, err := newConversion(name, hash, g.Schema(), res)
	if err != nil {
		return nil, err
	}
	s.store(c, true)
	return c, nil
}

// lookupHash finds an earlier conversion of the same input, in memory first
// and then through the Redis hash cache
func (s *ConversionService) lookupHash(ctx context.Context, hash string) (*model.Conversion, bool) {
	s.hashMutex.Lock()
	id, ok := s.hashes[hash]
	s.hashMutex.Unlock()
	if ok {
		if c, exists := s.storage.Get(id); exists {
			return c, true
		}
	}

	client := redis_client.GetClient()
	if client == nil {
		return nil, false
	}
	id, err := client.Get(ctx, fmt.Sprintf("%s:%s", InputHashRedisKey, hash)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("Error reading input hash from Redis: %v", err)
		}
		return nil, false
	}
	if c, exists := s.storage.Get(id); exists {
		return c, true
	}
	if pg.GetDB() == nil {
		return nil, false
	}

	// converted by another instance
	c, err := s.loadConversionFromPG(ctx, id)
	if err != nil {
		log.Printf("Error loading conversion %s from PostgreSQL: %v", id, err)
		return nil, false
	}
	s.store(c, false)
	return c, true
}

func newConversion(name, hash, schema string, res *converter.Result) (*model.Conversion, error) {
	var osmBuf, geoBuf bytes.Buffer
	if err := osmdata.WriteOSM(&osmBuf, res.Data); err != nil {
		return nil, err
	}
	if err := osmdata.WriteGeoJSON(&geoBuf, res.Data); err != nil {
		return nil, err
	}

	now := time.Now()
	return &model.Conversion{
		ID:         util.ShortUUID(),
		Name:       name,
		InputHash:  hash,
		Schema:     schema,
		Origin:     res.Origin,
		LengthUnit: res.Units.Length.String(),
		AngleUnit:  res.Units.Angle.String(),
		Elevations: res.Elevations,
		Classified: res.Classified,
		Prepared:   res.Prepared,
		Corrupt:    res.Corrupt,
		Message:    res.Message,
		Ways:       res.Data.Records(),
		OSM:        osmBuf.Bytes(),
		GeoJSON:    geoBuf.Bytes(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// store keeps a conversion in memory and indexes its ways. Fresh
// conversions are queued for PostgreSQL.
func (s *ConversionService) store(c *model.Conversion, fresh bool) {
	s.storage.Set(c.ID, c)

	s.hashMutex.Lock()
	s.hashes[c.InputHash] = c.ID
	if fresh {
		s.unsaved[c.ID] = true
	}
	s.hashMutex.Unlock()

	s.indexMutex.Lock()
	defer s.indexMutex.Unlock()
	for i := range c.Ways {
		if len(c.Ways[i].Points) == 0 {
			continue
		}
		s.spatialIndex.Insert(&model.WaySpatial{ConversionID: c.ID, Way: &c.Ways[i]})
	}
}

// Get returns a conversion by id
func (s *ConversionService) Get(id string) (*model.Conversion, bool) {
	return s.storage.Get(id)
}

// List returns all conversions, oldest first
func (s *ConversionService) List() []*model.Conversion {
	all := s.storage.GetAllValues()
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	return all
}

// WaysInBounds returns the stored ways whose bounding box intersects the
// given box, ordered by conversion and then by way
func (s *ConversionService) WaysInBounds(minLat, minLon, maxLat, maxLon float64) ([]*model.WaySpatial, error) {
	if minLat > maxLat || minLon > maxLon {
		return nil, fmt.Errorf("%w: min corner above max corner", ErrInvalidBound)
	}

	s.indexMutex.RLock()
	defer s.indexMutex.RUnlock()

	searchRect := model.BoundsRect(minLon, minLat, maxLon, maxLat)
	found := s.spatialIndex.SearchIntersect(searchRect)

	ways := make([]*model.WaySpatial, 0, len(found))
	for _, item := range found {
		if w, ok := item.(*model.WaySpatial); ok {
			ways = append(ways, w)
		}
	}
	sort.Slice(ways, func(i, j int) bool {
		if ways[i].ConversionID != ways[j].ConversionID {
			return ways[i].ConversionID < ways[j].ConversionID
		}
		// new ids count down from -1
		return ways[i].Way.ID > ways[j].Way.ID
	})
	return ways, nil
}

// SaveDirtyConversionsToRedis caches summaries and input hashes of new conversions
func (s *ConversionService) SaveDirtyConversionsToRedis(ctx context.Context) error {
	dirty := s.storage.GetDirty()
	if len(dirty) == 0 {
		return nil
	}

	client := redis_client.GetClient()
	if client == nil {
		// nothing to cache into, do not let the flags pile up
		ids := make([]string, 0, len(dirty))
		for id := range dirty {
			ids = append(ids, id)
		}
		s.storage.ClearDirty(ids)
		return nil
	}
	pipe := client.Pipeline()

	// Collect keys to clear flags after successful save
	keys := make([]string, 0, len(dirty))
	for id, c := range dirty {
		summary, err := json.Marshal(c.ToRedis())
		if err != nil {
			return err
		}
		pipe.Set(ctx, fmt.Sprintf("%s:%s", ConversionRedisKey, id), summary, config.ConversionCacheTTL)
		pipe.Set(ctx, fmt.Sprintf("%s:%s", InputHashRedisKey, c.InputHash), id, config.ConversionCacheTTL)
		keys = append(keys, id)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	// Clear flags only after successful save
	s.storage.ClearDirty(keys)

	log.Printf("Saved %d conversions to Redis", len(keys))
	return nil
}

// SaveDirtyConversionsToPG writes conversions not yet stored to PostgreSQL in batches
func (s *ConversionService) SaveDirtyConversionsToPG(ctx context.Context) error {
	db := pg.GetDB()
	if db == nil {
		return nil
	}

	s.hashMutex.Lock()
	pending := make([]*model.Conversion, 0, len(s.unsaved))
	for id := range s.unsaved {
		if c, ok := s.storage.Get(id); ok {
			pending = append(pending, c)
		}
	}
	s.hashMutex.Unlock()
	if len(pending) == 0 {
		return nil
	}

	// conversions carry their documents, keep transactions small
	batchSize := 50
	for i := 0; i < len(pending); i += batchSize {
		end := min(i+batchSize, len(pending))
		batch := pending[i:end]

		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, c := range batch {
				row, err := c.ToPG()
				if err != nil {
					return err
				}
				if err := tx.Save(row).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		s.hashMutex.Lock()
		for _, c := range batch {
			delete(s.unsaved, c.ID)
		}
		s.hashMutex.Unlock()

		log.Printf("Saved batch of %d conversions to PostgreSQL (%d/%d)",
			len(batch), end, len(pending))
	}
	return nil
}

// Pending returns how many conversions wait for PostgreSQL
func (s *ConversionService) Pending() int {
	s.hashMutex.Lock()
	defer s.hashMutex.Unlock()
	return len(s.unsaved)
}
