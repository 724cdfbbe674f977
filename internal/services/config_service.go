package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rodrigomacsantos/PieceSwap/internal/config"
)

// IConfigService provides marketplace settings that can be changed at runtime
// without a redeploy (swipe limit, premium price, commission rate and the
// like). Values live in MongoDB, are cached in memory, and instances reload
// on Redis pub/sub notifications.
type IConfigService interface {
	GetAllPublic(ctx context.Context) (map[string]interface{}, error)
	Get(ctx context.Context, key string) (interface{}, error)
	GetInt(ctx context.Context, key string, defaultValue int) int
	GetString(ctx context.Context, key string, defaultValue string) string
	GetBool(ctx context.Context, key string, defaultValue bool) bool
	GetFloat64(ctx context.Context, key string, defaultValue float64) float64
	GetDuration(ctx context.Context, key string, defaultValue time.Duration) time.Duration
	Load(ctx context.Context) error
	SubscribeToChanges(ctx context.Context) error
	SetConfigValue(ctx context.Context, key string, value interface{}, isPublic bool) error
}

const (
	configCollection    = "configuration"
	configUpdateChannel = "config_updates"
)

// configService implements IConfigService.
type configService struct {
	db    *mongo.Database
	cfg   *config.Config // Holds initial defaults loaded from .env
	rdb   *redis.Client
	cache map[string]interface{}
	mutex sync.RWMutex
}

// NewConfigService creates a new ConfigService, loads the current settings
// and starts the pub/sub reload listener.
func NewConfigService(db *mongo.Database, initialCfg *config.Config, rdb *redis.Client) IConfigService {
	s := &configService{
		db:    db,
		cfg:   initialCfg,
		rdb:   rdb,
		cache: make(map[string]interface{}),
	}
	if err := s.Load(context.Background()); err != nil {
		log.Printf("WARNING: Failed to load initial config from DB: %v. Using defaults from .env", err)
	}
	go func() {
		if err := s.SubscribeToChanges(context.Background()); err != nil {
			log.Printf("CRITICAL: Config Pub/Sub listener stopped: %v", err)
		}
	}()
	return s
}

// ConfigEntry represents a document in the configuration collection.
type ConfigEntry struct {
	Key    string      `bson:"key"`
	Value  interface{} `bson:"value"`
	Public bool        `bson:"public"`
}

// Load fetches all config entries from DB and populates the in-memory cache.
func (s *configService) Load(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cursor, err := s.db.Collection(configCollection).Find(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("failed to query config collection: %w", err)
	}
	defer cursor.Close(ctx)

	newCache := make(map[string]interface{})
	for cursor.Next(ctx) {
		var entry ConfigEntry
		if err := cursor.Decode(&entry); err == nil {
			newCache[entry.Key] = entry.Value
		} else {
			log.Printf("Warning: Failed to decode config entry during load: %v", err)
		}
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("error iterating config cursor: %w", err)
	}

	s.cache = newCache
	log.Printf("Loaded %d entries into config cache from DB.", len(s.cache))
	return nil
}

// GetAllPublic retrieves all configuration parameters marked as public,
// supplemented with the env defaults the client needs to render paywalls.
func (s *configService) GetAllPublic(ctx context.Context) (map[string]interface{}, error) {
	publicConfig := map[string]interface{}{}
	cursor, err := s.db.Collection(configCollection).Find(ctx, bson.M{"public": true})
	if err != nil {
		return nil, fmt.Errorf("failed to query public config from DB: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var entry ConfigEntry
		if err := cursor.Decode(&entry); err == nil {
			publicConfig[entry.Key] = entry.Value
		} else {
			log.Printf("Warning: Failed to decode public config entry: %v", err)
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating public config cursor: %w", err)
	}

	// Env defaults for keys not overridden in the DB.
	defaults := map[string]interface{}{
		"APP_NAME":          s.cfg.AppName,
		"FREE_SWIPE_LIMIT":  s.cfg.FreeSwipeLimit,
		"PREMIUM_PRICE_EUR": s.cfg.PremiumPriceEUR,
		"COMMISSION_RATE":   s.cfg.CommissionRate,
	}
	for key, val := range defaults {
		if _, exists := publicConfig[key]; !exists {
			publicConfig[key] = val
		}
	}

	return publicConfig, nil
}

// Get retrieves a specific configuration value, checking cache first, then
// the env-derived defaults.
func (s *configService) Get(ctx context.Context, key string) (interface{}, error) {
	s.mutex.RLock()
	val, exists := s.cache[key]
	s.mutex.RUnlock()

	if exists {
		return val, nil
	}

	switch key {
	case "APP_NAME":
		return s.cfg.AppName, nil
	case "FREE_SWIPE_LIMIT":
		return s.cfg.FreeSwipeLimit, nil
	case "PREMIUM_SUPERLIKE_LIMIT":
		return s.cfg.PremiumSuperlikeLimit, nil
	case "PREMIUM_PRICE_EUR":
		return s.cfg.PremiumPriceEUR, nil
	case "COMMISSION_RATE":
		return s.cfg.CommissionRate, nil
	default:
		return nil, fmt.Errorf("config key '%s' not found", key)
	}
}

func (s *configService) GetString(ctx context.Context, key string, defaultValue string) string {
	val, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	if strVal, ok := val.(string); ok {
		return strVal
	}
	log.Printf("Warning: Config key '%s' is not a string, using default.", key)
	return defaultValue
}

func (s *configService) GetInt(ctx context.Context, key string, defaultValue int) int {
	val, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	// MongoDB might store numbers as float64 or int32/64
	switch v := val.(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		log.Printf("Warning: Config key '%s' is not an integer type (%T), using default.", key, val)
		return defaultValue
	}
}

func (s *configService) GetBool(ctx context.Context, key string, defaultValue bool) bool {
	val, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	if boolVal, ok := val.(bool); ok {
		return boolVal
	}
	log.Printf("Warning: Config key '%s' is not a boolean, using default.", key)
	return defaultValue
}

// GetFloat64 retrieves a config value as float64, with fallback and type conversion.
func (s *configService) GetFloat64(ctx context.Context, key string, defaultValue float64) float64 {
	val, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	switch v := val.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	default:
		log.Printf("Warning: Config key '%s' is not a float64 type (%T), using default.", key, val)
		return defaultValue
	}
}

// GetDuration retrieves a config value as time.Duration (stored as seconds).
func (s *configService) GetDuration(ctx context.Context, key string, defaultValue time.Duration) time.Duration {
	val, err := s.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	switch v := val.(type) {
	case int:
		return time.Duration(v) * time.Second
	case int32:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v) * time.Second
	default:
		log.Printf("Warning: Config key '%s' is not a numeric type for duration (%T), using default.", key, val)
		return defaultValue
	}
}

// SubscribeToChanges listens for update messages on Redis Pub/Sub.
func (s *configService) SubscribeToChanges(ctx context.Context) error {
	if s.rdb == nil {
		log.Println("Redis client not configured, cannot subscribe to config changes.")
		return nil
	}

	pubsub := s.rdb.Subscribe(ctx, configUpdateChannel)
	defer pubsub.Close()

	// Wait for confirmation that subscription is created before publishing anything.
	_, err := pubsub.Receive(ctx)
	if err != nil {
		return fmt.Errorf("failed to receive confirmation from Redis Pub/Sub subscription: %w", err)
	}

	ch := pubsub.Channel()
	log.Println("Subscribed to Redis channel for config updates:", configUpdateChannel)

	for msg := range ch {
		log.Printf("Received config update notification on channel %s: %s", msg.Channel, msg.Payload)
		// Reload all config on any notification
		if err := s.Load(context.Background()); err != nil {
			log.Printf("ERROR reloading config from DB after notification: %v", err)
		}
	}

	log.Println("Config Pub/Sub listener stopped.")
	return nil
}

// SetConfigValue updates or inserts a config value in the DB and publishes an update.
func (s *configService) SetConfigValue(ctx context.Context, key string, value interface{}, isPublic bool) error {
	filter := bson.M{"key": key}
	update := bson.M{
		"$set": bson.M{
			"key":    key,
			"value":  value,
			"public": isPublic,
		},
	}
	opts := options.Update().SetUpsert(true)

	_, err := s.db.Collection(configCollection).UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert config key '%s' in DB: %w", key, err)
	}

	if s.rdb != nil {
		if err := s.rdb.Publish(ctx, configUpdateChannel, key).Err(); err != nil {
			log.Printf("Warning: Failed to publish config update notification for key '%s': %v", key, err)
		}
	}

	log.Printf("Updated config key '%s' and published notification.", key)
	return nil
}
