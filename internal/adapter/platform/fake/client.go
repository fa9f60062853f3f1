// Package fake is a deterministic in-memory platform client for local runs
// and tests. Channels, messages and scripted failures are injected up front;
// the session honours the (channel, min_id, limit) fetch semantics and the
// typed error surface of the real protocol.
package fake

import (
	"sort"
	"sync"

	"github.com/fairyhunter13/jobscout/internal/domain"
)

// Client implements domain.PlatformClient.
type Client struct {
	mu       sync.Mutex
	channels map[string][]domain.PlatformMessage
	infos    map[string]domain.ChannelInfo
	// failures maps channel handle to the error every call returns.
	failures map[string]error
	// connectErr, when set, fails Connect (e.g. domain.ErrAuthKeyInvalid).
	connectErr error
}

// New constructs an empty fake client.
func New() *Client {
	return &Client{
		channels: map[string][]domain.PlatformMessage{},
		infos:    map[string]domain.ChannelInfo{},
		failures: map[string]error{},
	}
}

// Seed adds messages to a channel.
func (c *Client) Seed(handle string, msgs ...domain.PlatformMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels[handle] = append(c.channels[handle], msgs...)
	if _, ok := c.infos[handle]; !ok {
		c.infos[handle] = domain.ChannelInfo{Handle: handle, Title: handle}
	}
}

// FailWith makes every call against handle return err.
func (c *Client) FailWith(handle string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[handle] = err
}

// FailConnect makes Connect return err.
func (c *Client) FailConnect(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectErr = err
}

// Connect opens a session bound to this client.
func (c *Client) Connect(_ domain.Context, accountID int, session []byte) (domain.PlatformSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectErr != nil {
		return nil, c.connectErr
	}
	return &fakeSession{client: c, accountID: accountID, blob: session}, nil
}

type fakeSession struct {
	client    *Client
	accountID int
	blob      []byte
}

// FetchHistory returns up to limit messages with id > minID, newest first.
func (s *fakeSession) FetchHistory(ctx domain.Context, channelHandle string, minID int64, limit int) ([]domain.PlatformMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.client.mu.Lock()
	defer s.client.mu.Unlock()
	if err, ok := s.client.failures[channelHandle]; ok {
		return nil, err
	}
	msgs, ok := s.client.channels[channelHandle]
	if !ok {
		return nil, domain.ErrUsernameInvalid
	}
	var out []domain.PlatformMessage
	for _, m := range msgs {
		if m.ID > minID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// JoinChannel records nothing; the fake treats every known channel as
// joinable.
func (s *fakeSession) JoinChannel(ctx domain.Context, handle string) (domain.ChannelInfo, error) {
	if err := ctx.Err(); err != nil {
		return domain.ChannelInfo{}, err
	}
	s.client.mu.Lock()
	defer s.client.mu.Unlock()
	if err, ok := s.client.failures[handle]; ok {
		return domain.ChannelInfo{}, err
	}
	info, ok := s.client.infos[handle]
	if !ok {
		return domain.ChannelInfo{}, domain.ErrUsernameInvalid
	}
	return info, nil
}

func (s *fakeSession) Export() []byte { return s.blob }

func (s *fakeSession) Close() error { return nil }
