package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// RealtimeFeed subscribes to the hosted store's change-notification
// channel over a websocket. Events name a collection and user key only;
// consumers re-fetch the affected mirror. Reconnects with exponential
// backoff and resubscribes after a drop.
type RealtimeFeed struct {
	url    string
	apiKey string
	logger zerolog.Logger

	// Handlers
	onError      func(error)
	onConnect    func()
	onDisconnect func()

	// State
	conn       *websocket.Conn
	connected  bool
	userID     string
	listeners  []ChangeListener

	// Reconnection
	maxRetries int
	baseDelay  time.Duration

	mu      sync.RWMutex
	writeMu sync.Mutex // Protects websocket writes
	cancel  context.CancelFunc
}

// RealtimeConfig holds realtime feed configuration.
type RealtimeConfig struct {
	URL        string
	APIKey     string
	MaxRetries int
	BaseDelay  time.Duration
}

// subscribeMessage is the channel subscription request: change events
// scoped by collection and user key.
type subscribeMessage struct {
	Action      string   `json:"action"`
	Collections []string `json:"collections"`
	UserID      string   `json:"user_id"`
}

// changeMessage is one pushed invalidation event.
type changeMessage struct {
	Collection string `json:"collection"`
	UserID     string `json:"user_id"`
}

// NewRealtimeFeed creates a realtime change feed client.
func NewRealtimeFeed(cfg RealtimeConfig, logger zerolog.Logger) *RealtimeFeed {
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 5
	}
	baseDelay := cfg.BaseDelay
	if baseDelay == 0 {
		baseDelay = time.Second
	}

	return &RealtimeFeed{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		logger:     logger.With().Str("component", "realtime-feed").Logger(),
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
	}
}

// SubscribeChanges registers a change listener.
func (f *RealtimeFeed) SubscribeChanges(l ChangeListener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, l)
}

// OnError sets the error handler.
func (f *RealtimeFeed) OnError(fn func(error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onError = fn
}

// OnConnect sets the connect handler.
func (f *RealtimeFeed) OnConnect(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onConnect = fn
}

// OnDisconnect sets the disconnect handler.
func (f *RealtimeFeed) OnDisconnect(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onDisconnect = fn
}

// Connect dials the channel, subscribes the user's collections, and keeps
// a read loop running until the context ends.
func (f *RealtimeFeed) Connect(ctx context.Context, userID string) error {
	f.mu.Lock()
	if f.connected {
		f.mu.Unlock()
		return nil
	}
	f.userID = userID
	loopCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.mu.Unlock()

	if err := f.dial(loopCtx); err != nil {
		cancel()
		return err
	}

	go f.readLoop(loopCtx)
	return nil
}

// Disconnect closes the channel and stops the read loop.
func (f *RealtimeFeed) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.connected = false
	return nil
}

func (f *RealtimeFeed) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := map[string][]string{}
	if f.apiKey != "" {
		header["Authorization"] = []string{"Bearer " + f.apiKey}
	}

	conn, _, err := dialer.DialContext(ctx, f.url, header)
	if err != nil {
		return fmt.Errorf("dialing realtime channel: %w", err)
	}

	f.mu.Lock()
	f.conn = conn
	f.connected = true
	onConnect := f.onConnect
	userID := f.userID
	f.mu.Unlock()

	if err := f.subscribe(userID); err != nil {
		conn.Close()
		return err
	}

	if onConnect != nil {
		go onConnect()
	}
	return nil
}

func (f *RealtimeFeed) subscribe(userID string) error {
	msg := subscribeMessage{
		Action: "subscribe",
		Collections: []string{
			string(CollectionOrders),
			string(CollectionPositions),
			string(CollectionWatchlists),
		},
		UserID: userID,
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	f.mu.RLock()
	conn := f.conn
	f.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	return conn.WriteJSON(msg)
}

func (f *RealtimeFeed) readLoop(ctx context.Context) {
	for {
		f.mu.RLock()
		conn := f.conn
		f.mu.RUnlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			f.handleDrop(ctx, err)
			return
		}

		var msg changeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			f.logger.Warn().Err(err).Msg("undecodable realtime event, skipping")
			continue
		}
		if msg.Collection == "" {
			continue // heartbeat
		}

		f.dispatch(ChangeEvent{
			Collection: Collection(msg.Collection),
			UserID:     msg.UserID,
		})
	}
}

func (f *RealtimeFeed) dispatch(ev ChangeEvent) {
	f.mu.RLock()
	listeners := append([]ChangeListener(nil), f.listeners...)
	f.mu.RUnlock()

	for _, l := range listeners {
		l(ev)
	}
}

// handleDrop reconnects with exponential backoff and resubscribes.
func (f *RealtimeFeed) handleDrop(ctx context.Context, cause error) {
	f.mu.Lock()
	wasConnected := f.connected
	f.connected = false
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	onDisconnect := f.onDisconnect
	onError := f.onError
	f.mu.Unlock()

	if onDisconnect != nil && wasConnected {
		go onDisconnect()
	}
	if onError != nil {
		go onError(cause)
	}

	delay := f.baseDelay
	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		f.logger.Info().Int("attempt", attempt).Msg("reconnecting realtime channel")
		if err := f.dial(ctx); err == nil {
			go f.readLoop(ctx)
			return
		}

		delay *= 2
	}

	f.logger.Error().Int("attempts", f.maxRetries).Msg("realtime channel reconnect exhausted")
}
