package telegram

import (
	"context"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/telegram/query"
	"github.com/gotd/td/tg"
	"golang.org/x/net/proxy"

	"github.com/media1take/Telegram-hosting/internal/catalog"
)

const dialogsBatchSize = 100

type hashLookup func(ctx context.Context, channelID int64) (int64, error)

type channelsRPC interface {
	ChannelsGetChannels(ctx context.Context, id []tg.InputChannelClass) (tg.MessagesChatsClass, error)
}

func (c *Client) inputChannel(ctx context.Context, api *tg.Client, ch catalog.Channel) (*tg.InputChannel, error) {
	id := NormalizeChannelID(ch.ID)
	lookup := func(ctx context.Context, channelID int64) (int64, error) {
		if c.cfg.BotToken != "" {
			channel, err := findChannel(ctx, api, channelID)
			if err != nil {
				return 0, err
			}
			c.saveChannel(ctx, channel)
			return channel.AccessHash, nil
		}
		return c.dialogsHash(ctx, api, channelID)
	}
	hash, err := c.accessHash(ctx, id, ch.AccessHash, lookup)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve channel %s", ch.Alias)
	}
	return &tg.InputChannel{ChannelID: id, AccessHash: hash}, nil
}

// accessHash resolves in order: configured value, memory, peer store, then
// the network lookup, which records what it finds in the peer store.
func (c *Client) accessHash(ctx context.Context, channelID, configured int64, lookup hashLookup) (int64, error) {
	if configured != 0 {
		return configured, nil
	}
	if hash, ok := c.cachedHash(channelID); ok {
		return hash, nil
	}

	c.resolveMu.Lock()
	defer c.resolveMu.Unlock()
	if hash, ok := c.cachedHash(channelID); ok {
		return hash, nil
	}
	if c.cfg.Peers != nil {
		hash, found, err := c.cfg.Peers.AccessHash(ctx, channelID)
		if err != nil {
			c.logWarn("peer store read failed", "channel_id", channelID, "error", err.Error())
		} else if found {
			c.rememberHash(channelID, hash)
			return hash, nil
		}
	}

	hash, err := lookup(ctx, channelID)
	if err != nil {
		return 0, err
	}
	c.rememberHash(channelID, hash)
	c.logInfo("channel resolved", "channel_id", channelID)
	return hash, nil
}

func (c *Client) cachedHash(channelID int64) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	hash, ok := c.hashes[channelID]
	return hash, ok
}

func (c *Client) rememberHash(channelID, hash int64) {
	c.mu.Lock()
	c.hashes[channelID] = hash
	c.mu.Unlock()
}

func (c *Client) saveChannel(ctx context.Context, channel *tg.Channel) {
	if c.cfg.Peers == nil {
		return
	}
	if err := c.cfg.Peers.SaveChannel(ctx, channel); err != nil {
		c.logWarn("peer store write failed", "channel_id", channel.ID, "error", err.Error())
	}
}

// dialogsHash fills the peer store from the account's dialogs and reads the
// channel back from it.
func (c *Client) dialogsHash(ctx context.Context, api *tg.Client, channelID int64) (int64, error) {
	if c.cfg.Peers == nil {
		return 0, errors.New("peer store is required to resolve channels from dialogs")
	}
	if err := c.cfg.Peers.CollectDialogs(ctx, query.GetDialogs(api).BatchSize(dialogsBatchSize).Iter()); err != nil {
		return 0, err
	}
	hash, found, err := c.cfg.Peers.AccessHash(ctx, channelID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, errors.Errorf("channel %d not in dialogs", channelID)
	}
	return hash, nil
}

// findChannel asks for the channel with a zero hash, which bots may do for
// channels they are a member of.
func findChannel(ctx context.Context, api channelsRPC, channelID int64) (*tg.Channel, error) {
	res, err := api.ChannelsGetChannels(ctx, []tg.InputChannelClass{&tg.InputChannel{ChannelID: channelID}})
	if err != nil {
		return nil, errors.Wrap(err, "get channels")
	}
	var chats []tg.ChatClass
	switch r := res.(type) {
	case *tg.MessagesChats:
		chats = r.Chats
	case *tg.MessagesChatsSlice:
		chats = r.Chats
	default:
		return nil, errors.Errorf("unexpected chats response %T", res)
	}
	for _, chat := range chats {
		if channel, ok := chat.(*tg.Channel); ok && channel.ID == channelID {
			return channel, nil
		}
	}
	return nil, errors.Errorf("channel %d not accessible", channelID)
}

// parseProxy accepts host:port or socks5://[user:pass@]host:port.
func parseProxy(raw string) (string, *proxy.Auth, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "socks5://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", nil, errors.Wrap(err, "parse proxy")
	}
	if u.Scheme != "socks5" {
		return "", nil, errors.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
	if u.Host == "" || u.Port() == "" {
		return "", nil, errors.Errorf("proxy %q needs host:port", u.Redacted())
	}
	var creds *proxy.Auth
	if u.User != nil {
		password, _ := u.User.Password()
		creds = &proxy.Auth{User: u.User.Username(), Password: password}
	}
	return u.Host, creds, nil
}

func socks5Dialer(raw string) (dcs.DialFunc, error) {
	addr, creds, err := parseProxy(raw)
	if err != nil {
		return nil, err
	}
	dialer, err := proxy.SOCKS5("tcp", addr, creds, proxy.Direct)
	if err != nil {
		return nil, errors.Wrap(err, "socks5 dialer")
	}
	contextDialer, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, errors.New("socks5 dialer does not support contexts")
	}
	return contextDialer.DialContext, nil
}
