package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"flightdeals/internal/flight"
	"flightdeals/pkg/logger"
)

const (
	flightPrefix = "flight:"
	tripPrefix   = "trip:"
	legPrefix    = "leg:"
	dealPrefix   = "deal:"
	fetchPrefix  = "fetch:"

	scanCount   = 100
	deleteBatch = 100

	// DefaultTTL applies when a departure date cannot be read.
	DefaultTTL = 24 * time.Hour
	// expiryGrace is how long entities outlive their departure date.
	expiryGrace = 48 * time.Hour
)

var ErrNotFound = errors.New("store: not found")

func FlightKey(id string) string { return flightPrefix + id }
func TripKey(id string) string   { return tripPrefix + id }
func LegKey(id string) string    { return legPrefix + id }
func DealKey(id string) string   { return dealPrefix + id }
func FetchKey(id string) string  { return fetchPrefix + id }

func tripLegsKey(tripID string) string  { return tripPrefix + tripID + ":legs" }
func tripDealsKey(tripID string) string { return tripPrefix + tripID + ":deals" }

// Expiration is departureDate + 2 days - now, floored at zero and truncated to whole seconds.
func Expiration(departureDate string, now time.Time) time.Duration {
	d, err := time.Parse(flight.DateLayout, departureDate)
	if err != nil {
		return DefaultTTL
	}

	ttl := d.Add(expiryGrace).Sub(now).Truncate(time.Second)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Store persists flights, trips, legs and deals as Redis hashes with trip->legs and trip->deals index sets.
// Every write is an upsert that refreshes the key's expiry.
type Store struct {
	client redis.UniversalClient
	logger logger.Client
	now    func() time.Time
}

func New(client redis.UniversalClient, logger logger.Client) *Store {
	return &Store{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock replaces the clock expirations are computed against.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) SaveFlight(ctx context.Context, f flight.Flight) error {
	return s.upsertHash(ctx, FlightKey(f.ID), flightFields(f), Expiration(f.DepartureDate, s.now()))
}

// SaveTrip expires the trip relative to the departure date of the search that found it.
func (s *Store) SaveTrip(ctx context.Context, t flight.Trip, departureDate string) error {
	return s.upsertHash(ctx, TripKey(t.ID), tripFields(t), Expiration(departureDate, s.now()))
}

func (s *Store) SaveLeg(ctx context.Context, l flight.Leg, departureDate string) error {
	ttl := Expiration(departureDate, s.now())
	if err := s.upsertHash(ctx, LegKey(l.ID), legFields(l), ttl); err != nil {
		return err
	}
	return s.addToIndex(ctx, tripLegsKey(l.Trip), l.ID, ttl)
}

func (s *Store) SaveDeal(ctx context.Context, d flight.Deal) error {
	ttl := Expiration(d.DepartureDate, s.now())
	if err := s.upsertHash(ctx, DealKey(d.ID), dealFields(d), ttl); err != nil {
		return err
	}
	return s.addToIndex(ctx, tripDealsKey(d.Trip), d.ID, ttl)
}

func (s *Store) GetFlight(ctx context.Context, id string) (flight.Flight, error) {
	h, err := s.getHash(ctx, FlightKey(id))
	if err != nil {
		return flight.Flight{}, err
	}
	return decodeFlight(h), nil
}

func (s *Store) GetTrip(ctx context.Context, id string) (flight.Trip, error) {
	h, err := s.getHash(ctx, TripKey(id))
	if err != nil {
		return flight.Trip{}, err
	}
	return decodeTrip(h), nil
}

func (s *Store) GetLeg(ctx context.Context, id string) (flight.Leg, error) {
	h, err := s.getHash(ctx, LegKey(id))
	if err != nil {
		return flight.Leg{}, err
	}
	return decodeLeg(h), nil
}

func (s *Store) GetDeal(ctx context.Context, id string) (flight.Deal, error) {
	h, err := s.getHash(ctx, DealKey(id))
	if err != nil {
		return flight.Deal{}, err
	}
	return decodeDeal(h), nil
}

// Flights resolves many flights in one round trip. Missing ids are absent from the result.
func (s *Store) Flights(ctx context.Context, ids []string) (map[string]flight.Flight, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = FlightKey(id)
	}

	hashes, err := s.hashes(ctx, keys)
	if err != nil {
		return nil, err
	}

	out := make(map[string]flight.Flight, len(hashes))
	for _, h := range hashes {
		f := decodeFlight(h)
		out[f.ID] = f
	}
	return out, nil
}

// LegsOfTrip returns the trip's legs, outbound first, each direction by order.
func (s *Store) LegsOfTrip(ctx context.Context, tripID string) ([]flight.Leg, error) {
	keys, err := s.members(ctx, tripLegsKey(tripID), LegKey)
	if err != nil {
		return nil, err
	}

	hashes, err := s.hashes(ctx, keys)
	if err != nil {
		return nil, err
	}

	legs := make([]flight.Leg, 0, len(hashes))
	for _, h := range hashes {
		legs = append(legs, decodeLeg(h))
	}
	sort.SliceStable(legs, func(i, j int) bool {
		if legs[i].Inbound != legs[j].Inbound {
			return !legs[i].Inbound
		}
		return legs[i].Order < legs[j].Order
	})
	return legs, nil
}

// DealsOfTrip returns the trip's deals, cheapest first.
func (s *Store) DealsOfTrip(ctx context.Context, tripID string) ([]flight.Deal, error) {
	keys, err := s.members(ctx, tripDealsKey(tripID), DealKey)
	if err != nil {
		return nil, err
	}

	hashes, err := s.hashes(ctx, keys)
	if err != nil {
		return nil, err
	}

	deals := make([]flight.Deal, 0, len(hashes))
	for _, h := range hashes {
		deals = append(deals, decodeDeal(h))
	}
	sort.SliceStable(deals, func(i, j int) bool { return deals[i].Price < deals[j].Price })
	return deals, nil
}

// ScanDeals returns every deal whose id starts with idPrefix, reading each SCAN page through one pipeline.
func (s *Store) ScanDeals(ctx context.Context, idPrefix string) ([]flight.Deal, error) {
	pattern := dealPrefix + escapeGlob(idPrefix) + "*"
	var deals []flight.Deal

	err := s.scan(ctx, pattern, func(keys []string) error {
		hashes, err := s.hashes(ctx, keys)
		if err != nil {
			return err
		}
		for _, h := range hashes {
			deals = append(deals, decodeDeal(h))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deals, nil
}

// Clear deletes every entity, index and fetch-status key and returns how many keys were removed.
// Each prefix is walked to the end of its cursor before anything is deleted, so deletes never move the walk.
func (s *Store) Clear(ctx context.Context) (int, error) {
	deleted := 0

	for _, prefix := range []string{flightPrefix, legPrefix, tripPrefix, dealPrefix, fetchPrefix} {
		var keys []string
		err := s.scan(ctx, prefix+"*", func(page []string) error {
			keys = append(keys, page...)
			return nil
		})
		if err != nil {
			return deleted, err
		}

		for len(keys) > 0 {
			batch := keys[:min(deleteBatch, len(keys))]
			keys = keys[len(batch):]

			n, err := s.client.Del(ctx, batch...).Result()
			if err != nil {
				return deleted, fmt.Errorf("store: failed to delete keys: %w", err)
			}
			deleted += int(n)
		}
	}

	s.logger.Info("store cleared", logger.Field{Key: "deleted", Value: deleted})
	return deleted, nil
}

func (s *Store) upsertHash(ctx context.Context, key string, fields map[string]any, ttl time.Duration) error {
	if ttl <= 0 {
		s.logger.Debug("write skipped for departed window", logger.Field{Key: "key", Value: key})
		return nil
	}
	if err := s.ensureType(ctx, key, "hash"); err != nil {
		return err
	}

	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, fields)
		p.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: failed to write %s: %w", key, err)
	}
	return nil
}

func (s *Store) addToIndex(ctx context.Context, key, member string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.ensureType(ctx, key, "set"); err != nil {
		return err
	}

	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.SAdd(ctx, key, member)
		p.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: failed to index %s: %w", key, err)
	}
	return nil
}

// ensureType deletes key when it holds something other than want, such as data from an older layout.
func (s *Store) ensureType(ctx context.Context, key, want string) error {
	kind, err := s.client.Type(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("store: failed to inspect %s: %w", key, err)
	}
	if kind == "none" || kind == want {
		return nil
	}

	s.logger.Warn("replacing key with incompatible type",
		logger.Field{Key: "key", Value: key},
		logger.Field{Key: "found", Value: kind},
		logger.Field{Key: "want", Value: want},
	)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("store: failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) getHash(ctx context.Context, key string) (map[string]string, error) {
	h, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("store: failed to read %s: %w", key, err)
	}
	if len(h) == 0 {
		return nil, ErrNotFound
	}
	return h, nil
}

// hashes reads keys through one pipeline. Keys that no longer exist are dropped.
func (s *Store) hashes(ctx context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(keys))
	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = p.HGetAll(ctx, k)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: failed to read %d keys: %w", len(keys), err)
	}

	out := make([]map[string]string, 0, len(cmds))
	for _, c := range cmds {
		if h := c.Val(); len(h) > 0 {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *Store) members(ctx context.Context, setKey string, toKey func(string) string) ([]string, error) {
	ids, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("store: failed to read index %s: %w", setKey, err)
	}
	sort.Strings(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = toKey(id)
	}
	return keys, nil
}

func (s *Store) scan(ctx context.Context, pattern string, page func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return fmt.Errorf("store: failed to scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := page(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func escapeGlob(s string) string {
	return strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`).Replace(s)
}
