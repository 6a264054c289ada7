package seats

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"busbooking/entity"
)

// KEYS[1] = seat key, ARGV[1] = ticket id
var reserveScript = redis.NewScript(`
local holder = redis.call("HGET", KEYS[1], "ticket")
local status = redis.call("HGET", KEYS[1], "status")

if status == "HELD" then
    if holder == ARGV[1] then
        return 1
    end
    return 0
end

redis.call("HSET", KEYS[1], "ticket", ARGV[1], "status", "HELD")
return 1
`)

// KEYS[1] = seat key, ARGV[1] = ticket id
var releaseScript = redis.NewScript(`
local holder = redis.call("HGET", KEYS[1], "ticket")

if not holder or holder ~= ARGV[1] then
    return 0
end

redis.call("HSET", KEYS[1], "status", "RELEASED")
return 1
`)

// RedisGuard keeps seat holds in Redis so that every instance of the service shares them.
// Each seat is a hash updated by a Lua script, which makes check-and-set atomic.
type RedisGuard struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisGuard(rdb *redis.Client) *RedisGuard {
	if rdb == nil {
		panic("missing redis client")
	}

	return &RedisGuard{rdb: rdb, prefix: "seat_hold:"}
}

func (g *RedisGuard) key(key entity.SeatKey) string {
	return g.prefix + strconv.FormatInt(key.TripID, 10) + ":" + key.SeatCode
}

func (g *RedisGuard) Reserve(ctx context.Context, key entity.SeatKey, ticketID int64) error {
	ok, err := reserveScript.Run(ctx, g.rdb, []string{g.key(key)}, ticketID).Int()
	if err != nil {
		return fmt.Errorf("could not reserve seat %s: %w", key, err)
	}
	if ok == 0 {
		return ErrSeatAlreadyHeld
	}

	return nil
}

func (g *RedisGuard) Release(ctx context.Context, key entity.SeatKey, ticketID int64) error {
	ok, err := releaseScript.Run(ctx, g.rdb, []string{g.key(key)}, ticketID).Int()
	if err != nil {
		return fmt.Errorf("could not release seat %s: %w", key, err)
	}
	if ok == 0 {
		return ErrNotHeldByTicket
	}

	return nil
}

func (g *RedisGuard) Holder(ctx context.Context, key entity.SeatKey) (entity.SeatReservation, bool, error) {
	fields, err := g.rdb.HGetAll(ctx, g.key(key)).Result()
	if err != nil {
		return entity.SeatReservation{}, false, fmt.Errorf("could not get seat %s: %w", key, err)
	}
	if len(fields) == 0 {
		return entity.SeatReservation{}, false, nil
	}

	ticketID, err := strconv.ParseInt(fields["ticket"], 10, 64)
	if err != nil {
		return entity.SeatReservation{}, false, fmt.Errorf("corrupted hold of seat %s: %w", key, err)
	}

	return entity.SeatReservation{
		Key:      key,
		TicketID: ticketID,
		Status:   entity.SeatHoldStatus(fields["status"]),
	}, true, nil
}

// Load restores holds that are missing in Redis, e.g. after a flush. Existing entries win.
func (g *RedisGuard) Load(ctx context.Context, holds []entity.SeatReservation) error {
	for _, h := range holds {
		if h.Status != entity.SeatHeld {
			continue
		}
		if err := g.Reserve(ctx, h.Key, h.TicketID); err != nil && !errors.Is(err, ErrSeatAlreadyHeld) {
			return err
		}
	}

	return nil
}
