package catalog

import (
	"errors"
	"fmt"
	"strings"
)

type Channel struct {
	Alias string
	// ID is the configured platform id, either Bot API style (-100...) or the
	// bare MTProto channel id.
	ID         int64
	AccessHash int64
}

// Channels is the static alias table. It is read-only after construction.
type Channels struct {
	ordered      []Channel
	byAlias      map[string]Channel
	defaultAlias string
}

func NewChannels(list []Channel, defaultAlias string) (*Channels, error) {
	if len(list) == 0 {
		return nil, errors.New("no channels configured")
	}
	c := &Channels{
		ordered: make([]Channel, 0, len(list)),
		byAlias: make(map[string]Channel, len(list)),
	}
	for _, ch := range list {
		ch.Alias = strings.TrimSpace(ch.Alias)
		if ch.Alias == "" {
			return nil, errors.New("channel alias must not be empty")
		}
		if _, dup := c.byAlias[ch.Alias]; dup {
			return nil, fmt.Errorf("duplicate channel alias %q", ch.Alias)
		}
		c.ordered = append(c.ordered, ch)
		c.byAlias[ch.Alias] = ch
	}
	defaultAlias = strings.TrimSpace(defaultAlias)
	if defaultAlias == "" {
		defaultAlias = c.ordered[0].Alias
	}
	if _, ok := c.byAlias[defaultAlias]; !ok {
		return nil, fmt.Errorf("default channel %q is not configured", defaultAlias)
	}
	c.defaultAlias = defaultAlias
	return c, nil
}

func (c *Channels) Resolve(alias string) (Channel, error) {
	ch, ok := c.byAlias[alias]
	if !ok {
		return Channel{}, notFound(&ChannelNotFoundError{Alias: alias})
	}
	return ch, nil
}

// Aliases returns aliases in configuration order.
func (c *Channels) Aliases() []string {
	out := make([]string, 0, len(c.ordered))
	for _, ch := range c.ordered {
		out = append(out, ch.Alias)
	}
	return out
}

func (c *Channels) All() []Channel {
	return append([]Channel(nil), c.ordered...)
}

func (c *Channels) Default() string {
	return c.defaultAlias
}

// Select resolves an explicit alias list, silently dropping unknown entries.
// A nil list selects every channel.
func (c *Channels) Select(aliases []string) ([]Channel, error) {
	if aliases == nil {
		return c.All(), nil
	}
	seen := make(map[string]struct{}, len(aliases))
	var out []Channel
	for _, alias := range aliases {
		alias = strings.TrimSpace(alias)
		ch, ok := c.byAlias[alias]
		if !ok {
			continue
		}
		if _, dup := seen[alias]; dup {
			continue
		}
		seen[alias] = struct{}{}
		out = append(out, ch)
	}
	if len(out) == 0 {
		return nil, notFound(ErrNoValidChannels)
	}
	return out, nil
}
