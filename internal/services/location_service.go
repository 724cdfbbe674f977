package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rodrigomacsantos/PieceSwap/internal/config"
	"github.com/rodrigomacsantos/PieceSwap/internal/models"
	"github.com/rodrigomacsantos/PieceSwap/internal/utils"
)

// ErrInvalidCoordinates is returned for out-of-range latitude/longitude.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// ILocationService defines the interface for geolocation operations.
type ILocationService interface {
	SaveLocation(ctx context.Context, userID utils.SixID, lat, lon float64) (*models.Profile, error)
	NearbyUsers(ctx context.Context, userID utils.SixID, lat, lon float64, radiusKM int) ([]models.NearbyUser, error)
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}

// nominatimResponse is the subset of the Nominatim reverse-geocoding payload
// we care about.
type nominatimResponse struct {
	Address struct {
		City         string `json:"city"`
		Town         string `json:"town"`
		Municipality string `json:"municipality"`
		Village      string `json:"village"`
	} `json:"address"`
}

// locationService implements ILocationService.
type locationService struct {
	db         *mongo.Database
	cfg        *config.Config
	httpClient *http.Client // Injectable for tests
}

// NewLocationService creates a new LocationService. httpClient may be nil, in
// which case a default client with a timeout is used.
func NewLocationService(db *mongo.Database, cfg *config.Config, httpClient *http.Client) ILocationService {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &locationService{db: db, cfg: cfg, httpClient: httpClient}
}

func validCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// SaveLocation stores the user's position on their profile and resolves the
// city name via reverse geocoding. Geocoding failures are non-fatal; the
// coordinates are saved regardless.
func (s *locationService) SaveLocation(ctx context.Context, userID utils.SixID, lat, lon float64) (*models.Profile, error) {
	if !validCoordinates(lat, lon) {
		return nil, ErrInvalidCoordinates
	}

	set := bson.M{
		"geo_point":  models.NewGeoPoint(lat, lon),
		"updated_at": time.Now().UTC(),
	}
	if city, err := s.ReverseGeocode(ctx, lat, lon); err == nil && city != "" {
		set["location"] = city
	}

	result, err := s.db.Collection(profilesCollection).UpdateOne(ctx, bson.M{"user_id": userID}, bson.M{"$set": set})
	if err != nil {
		return nil, fmt.Errorf("failed to save location for user %s: %w", userID.String(), err)
	}
	if result.MatchedCount == 0 {
		return nil, mongo.ErrNoDocuments
	}

	var profile models.Profile
	if err := s.db.Collection(profilesCollection).FindOne(ctx, bson.M{"user_id": userID}).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to reload profile for user %s: %w", userID.String(), err)
	}
	return &profile, nil
}

// NearbyUsers finds other users' profiles within radiusKM of the point,
// closest first, excluding the requester. Uses the 2dsphere index on
// profiles.geo_point; distances in the response are haversine.
func (s *locationService) NearbyUsers(ctx context.Context, userID utils.SixID, lat, lon float64, radiusKM int) ([]models.NearbyUser, error) {
	if !validCoordinates(lat, lon) {
		return nil, ErrInvalidCoordinates
	}
	if radiusKM <= 0 {
		radiusKM = s.cfg.NearbyRadiusKM
	}

	filter := bson.M{
		"user_id": bson.M{"$ne": userID},
		"geo_point": bson.M{
			"$nearSphere": bson.M{
				"$geometry":    models.NewGeoPoint(lat, lon),
				"$maxDistance": float64(radiusKM) * 1000, // metres
			},
		},
	}
	opts := options.Find().SetLimit(int64(s.cfg.NearbyMaxResults))

	cursor, err := s.db.Collection(profilesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearby users: %w", err)
	}
	defer cursor.Close(ctx)

	var profiles []models.Profile
	if err := cursor.All(ctx, &profiles); err != nil {
		return nil, fmt.Errorf("failed to decode nearby profiles: %w", err)
	}

	nearby := make([]models.NearbyUser, len(profiles))
	for i, p := range profiles {
		nearby[i] = models.NearbyUser{
			Profile:    p,
			DistanceKM: models.HaversineKM(lat, lon, p.GeoPoint.Lat(), p.GeoPoint.Lon()),
		}
	}
	return nearby, nil
}

// ReverseGeocode resolves coordinates to a locality name using the OSM
// Nominatim API. Falls through city, town, municipality, village in that
// order; returns "" when none is present.
func (s *locationService) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	endpoint := fmt.Sprintf("%s/reverse?format=json&lat=%s&lon=%s",
		s.cfg.NominatimBaseURL,
		url.QueryEscape(fmt.Sprintf("%f", lat)),
		url.QueryEscape(fmt.Sprintf("%f", lon)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create geocoding request: %w", err)
	}
	req.Header.Set("Accept-Language", "pt")
	req.Header.Set("User-Agent", s.cfg.AppName)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geocoding service returned status %d", resp.StatusCode)
	}

	var payload nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode geocoding response: %w", err)
	}

	switch {
	case payload.Address.City != "":
		return payload.Address.City, nil
	case payload.Address.Town != "":
		return payload.Address.Town, nil
	case payload.Address.Municipality != "":
		return payload.Address.Municipality, nil
	case payload.Address.Village != "":
		return payload.Address.Village, nil
	}
	return "", nil
}
