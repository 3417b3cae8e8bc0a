package relayclient

import (
	"context"
	"errors"
	"time"
)

const requestTimeout = 8 * time.Second

var (
	ErrSuperseded     = errors.New("another request is already pending")
	ErrRequestTimeout = errors.New("request timed out")
)

type requestResult struct {
	ack RoomAck
	err error
}

// pendingRequest is the single in-flight create or join request. Replies
// carry no request ids, so the sole pending slot is correlated purely by
// reply shape.
type pendingRequest struct {
	done  chan requestResult
	timer *time.Timer
}

// CreateRoom asks the server for a fresh room and waits for the ack.
func (c *Client) CreateRoom(ctx context.Context) (RoomAck, error) {
	return c.request(ctx, createInput{Type: "create"})
}

// JoinRoom joins an existing room by code and waits for the ack.
func (c *Client) JoinRoom(ctx context.Context, code string) (RoomAck, error) {
	return c.request(ctx, joinInput{Type: "join", Code: code})
}

func (c *Client) request(ctx context.Context, input any) (RoomAck, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return RoomAck{}, ErrClosed
	}
	if c.pending != nil {
		c.mu.Unlock()
		return RoomAck{}, ErrSuperseded
	}
	req := &pendingRequest{done: make(chan requestResult, 1)}
	req.timer = time.AfterFunc(c.requestTimeout, func() {
		c.expirePending(req)
	})
	c.pending = req
	c.mu.Unlock()

	if err := c.send(input); err != nil {
		c.clearPending(req)
		return RoomAck{}, err
	}

	select {
	case res := <-req.done:
		return res.ack, res.err
	case <-ctx.Done():
		c.clearPending(req)
		return RoomAck{}, ctx.Err()
	}
}

func (c *Client) resolvePending(ack RoomAck) bool {
	c.mu.Lock()
	req := c.takePendingLocked()
	c.mu.Unlock()

	if req == nil {
		return false
	}
	req.done <- requestResult{ack: ack}
	return true
}

func (c *Client) rejectPending(err error) bool {
	c.mu.Lock()
	req := c.takePendingLocked()
	c.mu.Unlock()

	if req == nil {
		return false
	}
	req.done <- requestResult{err: err}
	return true
}

// expirePending fires from the timeout timer. It only rejects if the
// slot still holds the same request, so a timeout never kills a
// successor.
func (c *Client) expirePending(req *pendingRequest) {
	c.mu.Lock()
	if c.pending != req {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	c.mu.Unlock()

	req.done <- requestResult{err: ErrRequestTimeout}
}

func (c *Client) clearPending(req *pendingRequest) {
	c.mu.Lock()
	if c.pending == req {
		c.pending = nil
		req.timer.Stop()
	}
	c.mu.Unlock()
}

func (c *Client) takePendingLocked() *pendingRequest {
	req := c.pending
	if req == nil {
		return nil
	}
	c.pending = nil
	req.timer.Stop()
	return req
}

func (c *Client) rejectPendingLocked(err error) {
	req := c.takePendingLocked()
	if req == nil {
		return
	}
	req.done <- requestResult{err: err}
}
