package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/musictogether/server/internal/repository/room"
)

// CreateRoom claims the code for the given host. Claiming is a single SETNX
// so two concurrent creates can never observe the same code as available.
func (r repo) CreateRoom(ctx context.Context, params *room.CreateRoomParams) error {
	roomKey := r.getRoomKey(params.Code)
	ok, err := r.rc.SetNX(ctx, roomKey, params.HostId, r.expireDuration).Result()
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}

	if !ok {
		return room.ErrRoomAlreadyExists
	}

	return nil
}

func (r repo) RemoveRoom(ctx context.Context, code string) error {
	pipe := r.rc.TxPipeline()
	pipe.Del(ctx, r.getRoomKey(code))
	pipe.Del(ctx, r.getGuestsKey(code))
	pipe.Del(ctx, r.getStateKey(code))

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to remove room: %w", err)
	}

	return nil
}

func (r repo) GetRoomHostId(ctx context.Context, code string) (string, error) {
	roomKey := r.getRoomKey(code)
	hostId, err := r.rc.Get(ctx, roomKey).Result()
	if err != nil {
		if err == goredis.Nil {
			return "", room.ErrRoomNotFound
		}

		return "", fmt.Errorf("failed to get room host: %w", err)
	}

	r.rc.Expire(ctx, roomKey, r.expireDuration)

	return hostId, nil
}

func (r repo) AddGuest(ctx context.Context, params *room.AddGuestParams) error {
	guestsKey := r.getGuestsKey(params.Code)
	pipe := r.rc.TxPipeline()
	pipe.SAdd(ctx, guestsKey, params.GuestId)
	pipe.Expire(ctx, guestsKey, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to add guest: %w", err)
	}

	return nil
}

func (r repo) RemoveGuest(ctx context.Context, params *room.RemoveGuestParams) error {
	removed, err := r.rc.SRem(ctx, r.getGuestsKey(params.Code), params.GuestId).Result()
	if err != nil {
		return fmt.Errorf("failed to remove guest: %w", err)
	}

	if removed == 0 {
		return room.ErrGuestNotFound
	}

	return nil
}

func (r repo) GetGuestIds(ctx context.Context, code string) ([]string, error) {
	guestsKey := r.getGuestsKey(code)
	guestIds, err := r.rc.SMembers(ctx, guestsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get guests: %w", err)
	}

	r.rc.Expire(ctx, guestsKey, r.expireDuration)

	return guestIds, nil
}

func (r repo) SetState(ctx context.Context, params *room.SetStateParams) error {
	if err := r.rc.Set(ctx, r.getStateKey(params.Code), []byte(params.State), r.expireDuration).Err(); err != nil {
		return fmt.Errorf("failed to set state: %w", err)
	}

	return nil
}

// GetState returns the last stored snapshot or nil when the room has none.
func (r repo) GetState(ctx context.Context, code string) (json.RawMessage, error) {
	state, err := r.rc.Get(ctx, r.getStateKey(code)).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to get state: %w", err)
	}

	return json.RawMessage(state), nil
}
