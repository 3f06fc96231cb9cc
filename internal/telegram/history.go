package telegram

import (
	"context"
	"sort"

	"github.com/go-faster/errors"
	"github.com/gotd/td/tg"

	"github.com/media1take/Telegram-hosting/internal/catalog"
)

// maxHistoryPage is the server-side cap for messages.getHistory.
const maxHistoryPage = 100

type historyRPC interface {
	MessagesGetHistory(ctx context.Context, request *tg.MessagesGetHistoryRequest) (tg.MessagesMessagesClass, error)
	ChannelsGetMessages(ctx context.Context, request *tg.ChannelsGetMessagesRequest) (tg.MessagesMessagesClass, error)
}

func unpackMessages(res tg.MessagesMessagesClass) ([]tg.MessageClass, error) {
	switch r := res.(type) {
	case *tg.MessagesChannelMessages:
		return r.Messages, nil
	case *tg.MessagesMessagesSlice:
		return r.Messages, nil
	case *tg.MessagesMessages:
		return r.Messages, nil
	case *tg.MessagesMessagesNotModified:
		return nil, nil
	default:
		return nil, errors.Errorf("unexpected history response %T", res)
	}
}

func historyRequest(peer *tg.InputPeerChannel, q catalog.HistoryQuery) *tg.MessagesGetHistoryRequest {
	limit := min(max(q.Limit, 1), maxHistoryPage)
	req := &tg.MessagesGetHistoryRequest{
		Peer:     peer,
		OffsetID: q.OffsetID,
		Limit:    limit,
		MinID:    q.MinID,
	}
	if q.Ascending {
		// Start just above MinID and read towards newer messages.
		req.OffsetID = q.MinID + 1
		req.AddOffset = -limit
	}
	return req
}

func fetchHistory(ctx context.Context, api historyRPC, peer *tg.InputPeerChannel, channelID int64, q catalog.HistoryQuery) ([]catalog.Message, error) {
	res, err := api.MessagesGetHistory(ctx, historyRequest(peer, q))
	if err != nil {
		return nil, errors.Wrap(err, "get history")
	}
	classes, err := unpackMessages(res)
	if err != nil {
		return nil, err
	}
	msgs := projectMessages(classes, channelID)

	kept := msgs[:0]
	for _, m := range msgs {
		if m.ID <= q.MinID || (!q.Ascending && q.OffsetID > 0 && m.ID >= q.OffsetID) {
			continue
		}
		kept = append(kept, m)
	}
	if q.Ascending {
		sort.Slice(kept, func(i, j int) bool { return kept[i].ID < kept[j].ID })
	} else {
		sort.Slice(kept, func(i, j int) bool { return kept[i].ID > kept[j].ID })
	}
	if len(kept) > q.Limit && q.Limit > 0 {
		kept = kept[:q.Limit]
	}
	return kept, nil
}

func fetchMessage(ctx context.Context, api historyRPC, channel *tg.InputChannel, channelID int64, id int) (*catalog.Message, error) {
	res, err := api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
		Channel: channel,
		ID:      []tg.InputMessageClass{&tg.InputMessageID{ID: id}},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "get message %d", id)
	}
	classes, err := unpackMessages(res)
	if err != nil {
		return nil, err
	}
	for _, m := range projectMessages(classes, channelID) {
		if m.ID == id {
			found := m
			return &found, nil
		}
	}
	return nil, nil
}
