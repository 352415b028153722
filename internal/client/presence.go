package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/benresonance-star/tally/internal/docstore"
	"github.com/benresonance-star/tally/internal/types"
)

// Presence: each client heartbeats its own slot in the instance's
// activeUsers map through a dotted field path, so concurrent heartbeats from
// different users never clobber each other. Departure deletes only the
// caller's slot; crashed clients age out through the presence TTL.

// presenceTarget is where the session user is currently present.
type presenceTarget struct {
	instanceID string
	taskID     string
}

// JoinInstance marks the user present on an instance and heartbeats at once.
func (c *Client) JoinInstance(ctx context.Context, instanceID string) error {
	c.doSync(func(s *state) {
		s.presence = presenceTarget{instanceID: instanceID}
	})
	return c.heartbeat(ctx)
}

// SetPresenceTask advertises which task the user is looking at.
func (c *Client) SetPresenceTask(ctx context.Context, taskID string) error {
	var joined bool
	c.doSync(func(s *state) {
		if s.presence.instanceID != "" {
			s.presence.taskID = taskID
			joined = true
		}
	})
	if !joined {
		return nil
	}
	return c.heartbeat(ctx)
}

// LeaveInstance removes the user's presence slot from the current instance.
func (c *Client) LeaveInstance(ctx context.Context) error {
	var target presenceTarget
	var userID string
	c.doSync(func(s *state) {
		target = s.presence
		userID = s.userID
		s.presence = presenceTarget{}
	})
	if target.instanceID == "" || userID == "" {
		return nil
	}
	err := c.instancesCol.Update(ctx, target.instanceID, map[string]any{
		"activeUsers." + userID: docstore.DeleteField,
	})
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("leave instance %s: %w", target.instanceID, err)
	}
	return nil
}

// heartbeatLoop refreshes the presence slot on a fixed cadence. Transient
// store failures are retried with exponential backoff inside one beat; a
// beat that still fails is dropped, the next one will catch up.
func (c *Client) heartbeatLoop(ctx context.Context) error {
	interval := c.cfg.Presence.HeartbeatInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			policy := backoff.WithContext(backoff.WithMaxRetries(
				backoff.NewExponentialBackOff(), 3), ctx)
			if err := backoff.Retry(func() error { return c.heartbeat(ctx) }, policy); err != nil {
				c.notes.Warn(fmt.Sprintf("presence heartbeat failed: %v", err))
			}
		}
	}
}

// heartbeat writes the user's presence slot on the joined instance. No-op
// when the user is not present anywhere.
func (c *Client) heartbeat(ctx context.Context) error {
	var target presenceTarget
	var userID, name string
	c.doSync(func(s *state) {
		target = s.presence
		userID = s.userID
		if u := s.users[s.userID]; u != nil {
			name = u.Name
		}
	})
	if target.instanceID == "" || userID == "" {
		return nil
	}
	info := types.PresenceInfo{
		UserID:   userID,
		Name:     name,
		TaskID:   target.taskID,
		LastSeen: c.now(),
	}
	err := c.instancesCol.Update(ctx, target.instanceID, map[string]any{
		"activeUsers." + userID: info,
	})
	if errors.Is(err, docstore.ErrNotFound) {
		// instance deleted under us; drop the presence target
		c.doSync(func(s *state) {
			if s.presence.instanceID == target.instanceID {
				s.presence = presenceTarget{}
			}
		})
		return nil
	}
	return err
}
