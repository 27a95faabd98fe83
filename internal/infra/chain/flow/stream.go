package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vietddude/walletsync/internal/core/domain"
	"github.com/vietddude/walletsync/internal/infra/chain"
)

const topicTransactionStatuses = "transaction_statuses"

type streamRequest struct {
	SubscriptionID string            `json:"subscription_id"`
	Action         string            `json:"action"`
	Topic          string            `json:"topic,omitempty"`
	Arguments      map[string]string `json:"arguments,omitempty"`
}

type streamMessage struct {
	SubscriptionID string `json:"subscription_id"`
	Topic          string `json:"topic"`
	Payload        *struct {
		TransactionResult struct {
			Status       string `json:"status"`
			StatusCode   int    `json:"status_code"`
			ErrorMessage string `json:"error_message"`
		} `json:"transaction_result"`
	} `json:"payload"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type statusStream struct {
	id      string
	conn    *websocket.Conn
	updates chan domain.TransactionResult
	done    chan struct{}
	once    sync.Once
	log     *slog.Logger
}

// SubscribeTransactionStatus opens a websocket stream for txID. The stream
// is closed when ctx is done or Close is called.
func (c *Client) SubscribeTransactionStatus(ctx context.Context, txID string) (chain.Subscription, error) {
	if c.cfg.StreamURL == "" {
		return nil, errors.New("stream url not configured")
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.StreamURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial stream: %w", err)
	}

	// subscription ids are limited to 20 characters
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
	req := streamRequest{
		SubscriptionID: id,
		Action:         "subscribe",
		Topic:          topicTransactionStatuses,
		Arguments:      map[string]string{"tx_id": domain.NormalizeTxID(txID)},
	}
	if err := conn.WriteJSON(req); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	s := &statusStream{
		id:      id,
		conn:    conn,
		updates: make(chan domain.TransactionResult, 8),
		done:    make(chan struct{}),
		log:     c.log.With("tx", txID, "subscription", id),
	}
	go s.readLoop()
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()
	return s, nil
}

func (s *statusStream) Updates() <-chan domain.TransactionResult { return s.updates }

func (s *statusStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.WriteJSON(streamRequest{SubscriptionID: s.id, Action: "unsubscribe"})
		err = s.conn.Close()
	})
	return err
}

func (s *statusStream) readLoop() {
	defer close(s.updates)
	for {
		var msg streamMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			select {
			case <-s.done:
			default:
				s.log.Warn("Transaction stream ended", "error", err)
			}
			return
		}
		if msg.Error != nil {
			s.log.Error("Transaction stream error", "code", msg.Error.Code, "message", msg.Error.Message)
			return
		}
		if msg.Payload == nil || msg.SubscriptionID != s.id {
			continue // subscribe ack or foreign message
		}

		tr := msg.Payload.TransactionResult
		result := domain.TransactionResult{
			Status:       domain.ParseChainStatus(tr.Status),
			ErrorMessage: tr.ErrorMessage,
			ErrorCode:    domain.ParseErrorCode(tr.ErrorMessage),
		}
		select {
		case s.updates <- result:
		case <-s.done:
			return
		}
	}
}
