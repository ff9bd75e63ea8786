package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"depthwatch/internal/logger"
	"depthwatch/internal/models"
)

// Subscription is a handle to an open push feed. Close unsubscribes and
// stops the read loop.
type Subscription struct {
	cancel    context.CancelFunc
	conn      *websocket.Conn
	done      chan struct{}
	closeOnce sync.Once
}

// Close terminates the subscription and waits for the read loop to exit.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.conn.Close()
		<-s.done
	})
}

type subscribeFrame struct {
	Type      string   `json:"type"`
	AssetsIDs []string `json:"assets_ids"`
}

type wsBookMessage struct {
	EventType string         `json:"event_type"`
	AssetID   string         `json:"asset_id"`
	Bids      []models.Level `json:"bids"`
	Asks      []models.Level `json:"asks"`
	Timestamp string         `json:"timestamp"`
}

// Subscribe opens the market channel for the given token IDs and delivers
// top-of-book updates to onUpdate. The read loop runs until Close or ctx
// cancellation; feed errors go to onError and end the loop.
func (c *CLOBClient) Subscribe(ctx context.Context, marketIDs []string, onUpdate func(models.BookUpdate), onError func(error)) (*Subscription, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.wsURL+"/market", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial market feed: %w", err)
	}

	frame := subscribeFrame{Type: "market", AssetsIDs: marketIDs}
	if err := conn.WriteJSON(frame); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send subscribe frame: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		cancel: cancel,
		conn:   conn,
		done:   make(chan struct{}),
	}

	// Closing the conn is the only way to unblock ReadMessage, so context
	// cancellation (parent or Close) must translate into a close.
	go func() {
		<-subCtx.Done()
		_ = conn.Close()
	}()

	go func() {
		defer close(sub.done)
		defer cancel()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if subCtx.Err() == nil {
					onError(fmt.Errorf("market feed read failed: %w", err))
				}
				return
			}
			update, ok := parseBookMessage(data)
			if !ok {
				continue
			}
			onUpdate(update)
		}
	}()

	logger.Info("Subscribed to market feed for %d market(s)", len(marketIDs))
	return sub, nil
}

// parseBookMessage converts a feed message into a BookUpdate. Non-book
// messages and books with no levels on either side are skipped.
func parseBookMessage(data []byte) (models.BookUpdate, bool) {
	var msg wsBookMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return models.BookUpdate{}, false
	}
	if msg.EventType != "book" || msg.AssetID == "" {
		return models.BookUpdate{}, false
	}

	update := models.BookUpdate{
		MarketID:  msg.AssetID,
		Timestamp: parseFeedTimestamp(msg.Timestamp),
	}

	if bid, ok := topOfBook(msg.Bids, true); ok {
		update.YesBestBid = &bid
		noAsk := 1.0 - bid
		update.NoBestAsk = &noAsk
	}
	if ask, ok := topOfBook(msg.Asks, false); ok {
		update.YesBestAsk = &ask
		noBid := 1.0 - ask
		update.NoBestBid = &noBid
	}
	return update, true
}

func topOfBook(levels []models.Level, highest bool) (float64, bool) {
	if len(levels) == 0 {
		return 0, false
	}
	best := levels[0].Price
	for _, l := range levels[1:] {
		if highest && l.Price > best {
			best = l.Price
		}
		if !highest && l.Price < best {
			best = l.Price
		}
	}
	return best, true
}

func parseFeedTimestamp(raw string) time.Time {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Now()
	}
	return time.UnixMilli(ms)
}
